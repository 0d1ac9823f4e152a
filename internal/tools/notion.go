package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
)

// NotionTools exposes workspace search over a Notion internal integration.
type NotionTools struct {
	client *notionapi.Client
}

// NewNotionTools creates the Notion capability provider. Returns nil when no
// integration secret is configured, which disables the capability.
func NewNotionTools(integrationSecret string) *NotionTools {
	if integrationSecret == "" {
		return nil
	}
	return &NotionTools{client: notionapi.NewClient(notionapi.Token(integrationSecret))}
}

// Verify makes a low-impact read request to confirm the token works.
func (n *NotionTools) Verify(ctx context.Context) error {
	_, err := n.client.User.Me(ctx)
	if err != nil {
		var notionErr *notionapi.Error
		if errors.As(err, &notionErr) {
			if notionErr.Status == 401 {
				return errors.New("notion token rejected (unauthorized)")
			}
			return fmt.Errorf("notion api error (%s): %s", notionErr.Code, notionErr.Message)
		}
		return fmt.Errorf("failed to verify notion token: %w", err)
	}
	return nil
}

type notionSearchInput struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"Text to search for across the Notion workspace."`
}

// Register adds the notion_search capability.
func (n *NotionTools) Register(r *Registry) {
	Add(r, "notion_search", "Search pages in the connected Notion workspace.", func(ctx context.Context, in notionSearchInput) (string, error) {
		return n.search(ctx, in.Query)
	})
}

func (n *NotionTools) search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("search query cannot be empty")
	}

	resp, err := n.client.Search.Do(ctx, &notionapi.SearchRequest{
		Query:    query,
		PageSize: 5,
	})
	if err != nil {
		var notionErr *notionapi.Error
		if errors.As(err, &notionErr) {
			return "", fmt.Errorf("notion api error (%s): %s", notionErr.Code, notionErr.Message)
		}
		return "", fmt.Errorf("notion search failed: %w", err)
	}

	if len(resp.Results) == 0 {
		return "No Notion pages matched.", nil
	}

	var sb strings.Builder
	for _, obj := range resp.Results {
		page, ok := obj.(*notionapi.Page)
		if !ok {
			continue
		}
		title := pageTitle(page)
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", title, page.URL)
	}
	result := strings.TrimSpace(sb.String())
	if result == "" {
		return "No Notion pages matched.", nil
	}
	return result, nil
}

func pageTitle(page *notionapi.Page) string {
	for _, prop := range page.Properties {
		title, ok := prop.(*notionapi.TitleProperty)
		if !ok {
			continue
		}
		var sb strings.Builder
		for _, rt := range title.Title {
			sb.WriteString(rt.PlainText)
		}
		return sb.String()
	}
	return ""
}
