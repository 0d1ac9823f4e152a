// Package chatclient is a Go client for the chatstream backend. It handles
// authentication, the streaming chat endpoint, and transcript history,
// rendering both live streams and stored transcripts into the same message
// shape.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/transcript"
)

// UpdateFunc is invoked after every rendered change to the live message
// list during a stream.
type UpdateFunc func(messages []transcript.RenderedMessage)

// Client calls the backend HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
	}
}

// SetToken installs a previously obtained access token.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current access token, if any.
func (c *Client) Token() string { return c.token }

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var apiErr models.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

// Register creates an account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, email, password string, name *string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", models.RegisterRequest{
		Email:    email,
		Password: password,
		Name:     name,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", models.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

// StreamText sends a prompt and consumes the response stream, feeding the
// given consumer and invoking onUpdate after each rendered change. The
// consumer keeps the running message list across calls.
func (c *Client) StreamText(ctx context.Context, consumer *transcript.Consumer, prompt, conversationID string, onUpdate UpdateFunc) error {
	payload, err := json.Marshal(models.StreamTextRequest{
		Prompt:         prompt,
		ConversationID: conversationID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ai/streamtext", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	consumer.AddMessage("user", prompt)
	if onUpdate != nil {
		onUpdate(consumer.Messages())
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			consumer.Feed(buf[:n])
			if onUpdate != nil {
				onUpdate(consumer.Messages())
			}
		}
		if readErr != nil {
			consumer.EndMessage()
			if onUpdate != nil {
				onUpdate(consumer.Messages())
			}
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", readErr)
		}
	}
}

// Messages loads the stored conversation and renders it with the same
// shape a live stream produces.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]transcript.RenderedMessage, error) {
	path := "/v1/ai/messages"
	if conversationID != "" {
		path += "?conversationId=" + conversationID
	}

	var rows []models.MessageResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]transcript.RenderedMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, renderStored(row))
	}
	return out, nil
}

// renderStored folds a stored message into the rendered shape. Assistant
// rows replay their transcript parts; rows without parts fall back to the
// plain content column.
func renderStored(row models.MessageResponse) transcript.RenderedMessage {
	msg := transcript.RenderedMessage{
		ID:        row.ID.String(),
		Role:      row.Role,
		Timestamp: row.Timestamp,
	}
	if len(row.Parts) > 0 {
		msg.Content, msg.Invocations = transcript.Replay(row.Parts)
		return msg
	}
	if row.Content != nil {
		msg.Content = *row.Content
	}
	return msg
}

// ClearMessages deletes the stored conversation.
func (c *Client) ClearMessages(ctx context.Context, conversationID string) error {
	path := "/v1/ai/messages"
	if conversationID != "" {
		path += "?conversationId=" + conversationID
	}
	var resp models.ClearMessagesResponse
	return c.doJSON(ctx, http.MethodDelete, path, nil, &resp)
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}
