package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chatstream-backend/internal/models"
)

// Retriever finds stored documents relevant to a query. The store-backed
// implementation does substring matching; the interface leaves room for a
// vector index later.
type Retriever interface {
	Retrieve(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Document, error)
}

type searchDocumentsInput struct {
	Query string `json:"query" jsonschema:"required" jsonschema_description:"Text to look up in the user's saved documents."`
}

// RegisterRetriever adds the search_documents capability bound to one user.
func RegisterRetriever(r *Registry, retriever Retriever, userID uuid.UUID) {
	Add(r, "search_documents", "Search the user's saved documents for relevant information.", func(ctx context.Context, in searchDocumentsInput) (string, error) {
		if strings.TrimSpace(in.Query) == "" {
			return "", errors.New("search query cannot be empty")
		}
		docs, err := retriever.Retrieve(ctx, userID, in.Query, 5)
		if err != nil {
			return "", fmt.Errorf("document search failed: %w", err)
		}
		if len(docs) == 0 {
			return "No matching documents found.", nil
		}
		var sb strings.Builder
		for i, doc := range docs {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, doc.Content)
		}
		return strings.TrimSpace(sb.String()), nil
	})
}
