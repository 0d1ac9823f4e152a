package tools

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatstream-backend/internal/crypto"
	"chatstream-backend/internal/store"
)

const (
	calendarEventsURL = "https://www.googleapis.com/calendar/v3/calendars/primary/events"
	gmailMessagesURL  = "https://gmail.googleapis.com/gmail/v1/users/me/messages"
)

// GoogleTools registers the calendar and mail capabilities for users with a
// linked Google account. Tokens are stored encrypted and decrypted per call.
type GoogleTools struct {
	store      store.Store
	aead       cipher.AEAD
	httpClient *http.Client
	now        func() time.Time
}

// NewGoogleTools creates the Google capability provider.
func NewGoogleTools(s store.Store, aead cipher.AEAD) *GoogleTools {
	return &GoogleTools{
		store:      s,
		aead:       aead,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// Available reports whether the user has a linked Google account. Lookup
// failures disable the capabilities for the request instead of failing it.
func (g *GoogleTools) Available(ctx context.Context, userID uuid.UUID) bool {
	linked, err := g.store.HasLinkedAccount(ctx, userID)
	if err != nil {
		log.Printf("WARN [GoogleTools] Available: failed to check linked account for user %s: %v", userID, err)
		return false
	}
	return linked
}

// Register adds get_calendar_events and get_emails bound to the given user.
func (g *GoogleTools) Register(r *Registry, userID uuid.UUID) {
	Add(r, "get_calendar_events", "Get the user's upcoming Google Calendar events.", func(ctx context.Context, in calendarInput) (string, error) {
		return g.calendarEvents(ctx, userID, in)
	})
	Add(r, "get_emails", "Get the user's recent Gmail messages, optionally filtered by a search query.", func(ctx context.Context, in emailInput) (string, error) {
		return g.recentEmails(ctx, userID, in)
	})
}

func (g *GoogleTools) accessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := g.store.GetUserToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load linked account token: %w", err)
	}
	plaintext, err := crypto.Decrypt(g.aead, token.EncryptedAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return string(plaintext), nil
}

func (g *GoogleTools) apiGet(ctx context.Context, userID uuid.UUID, rawURL string, out any) error {
	accessToken, err := g.accessToken(ctx, userID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("google api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("google api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode google api response: %w", err)
	}
	return nil
}

type calendarInput struct {
	MaxResults int `json:"maxResults,omitempty" jsonschema_description:"Maximum number of events to return (default 10)."`
}

type calendarEventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type calendarEvent struct {
	Summary  string            `json:"summary"`
	Location string            `json:"location"`
	Start    calendarEventTime `json:"start"`
	End      calendarEventTime `json:"end"`
}

func (g *GoogleTools) calendarEvents(ctx context.Context, userID uuid.UUID, in calendarInput) (string, error) {
	maxResults := in.MaxResults
	if maxResults <= 0 || maxResults > 25 {
		maxResults = 10
	}

	params := url.Values{}
	params.Set("timeMin", g.now().UTC().Format(time.RFC3339))
	params.Set("maxResults", fmt.Sprintf("%d", maxResults))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")

	var payload struct {
		Items []calendarEvent `json:"items"`
	}
	if err := g.apiGet(ctx, userID, calendarEventsURL+"?"+params.Encode(), &payload); err != nil {
		return "", err
	}

	if len(payload.Items) == 0 {
		return "No upcoming calendar events found.", nil
	}

	var sb strings.Builder
	for _, ev := range payload.Items {
		start := ev.Start.DateTime
		if start == "" {
			start = ev.Start.Date // all-day event
		}
		fmt.Fprintf(&sb, "- %s (%s)", ev.Summary, start)
		if ev.Location != "" {
			fmt.Fprintf(&sb, " at %s", ev.Location)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

type emailInput struct {
	Query      string `json:"query,omitempty" jsonschema_description:"Gmail search query, e.g. 'is:unread' or 'from:alice@example.com'."`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of messages to return (default 5)."`
}

func (g *GoogleTools) recentEmails(ctx context.Context, userID uuid.UUID, in emailInput) (string, error) {
	maxResults := in.MaxResults
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 5
	}

	params := url.Values{}
	params.Set("maxResults", fmt.Sprintf("%d", maxResults))
	if in.Query != "" {
		params.Set("q", in.Query)
	}

	var listing struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.apiGet(ctx, userID, gmailMessagesURL+"?"+params.Encode(), &listing); err != nil {
		return "", err
	}

	if len(listing.Messages) == 0 {
		return "No emails matched.", nil
	}

	var sb strings.Builder
	for _, m := range listing.Messages {
		var msg struct {
			Snippet string `json:"snippet"`
			Payload struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		}
		msgURL := fmt.Sprintf("%s/%s?format=metadata&metadataHeaders=Subject&metadataHeaders=From", gmailMessagesURL, m.ID)
		if err := g.apiGet(ctx, userID, msgURL, &msg); err != nil {
			log.Printf("WARN [GoogleTools] recentEmails: failed to fetch message %s: %v", m.ID, err)
			continue
		}

		subject, from := "(no subject)", "(unknown sender)"
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				subject = h.Value
			case "From":
				from = h.Value
			}
		}
		fmt.Fprintf(&sb, "- From %s: %s\n  %s\n", from, subject, msg.Snippet)
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "No emails could be retrieved.", nil
	}
	return result, nil
}
