package postgres

import (
	"context"
	"errors"
	"fmt"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createDocument = `-- name: CreateDocument :one
INSERT INTO documents (
    id, user_id, content
) VALUES (
    $1, $2, $3
)
RETURNING id, user_id, content, created_at;
`

func (s *PostgresStore) CreateDocument(ctx context.Context, arg store.CreateDocumentParams) (*models.Document, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.db.QueryRow(ctx, createDocument, id, arg.UserID, arg.Content)

	var doc models.Document
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Content, &doc.CreatedAt); err != nil {
		return nil, fmt.Errorf("error scanning document: %w", err)
	}
	return &doc, nil
}

const listDocuments = `-- name: ListDocuments :many
SELECT id, user_id, content, created_at
FROM documents
WHERE user_id = $1
ORDER BY created_at DESC;
`

func (s *PostgresStore) ListDocuments(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	rows, err := s.db.Query(ctx, listDocuments, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return docs, nil
}

const searchDocuments = `-- name: SearchDocuments :many
SELECT id, user_id, content, created_at
FROM documents
WHERE user_id = $1 AND content ILIKE '%' || $2 || '%'
ORDER BY created_at DESC
LIMIT $3;
`

// SearchDocuments is the store-backed retriever behind the search tool
// capability. Plain substring match; the retrieval subsystem proper is a
// pluggable collaborator and richer rankers replace this at the interface.
func (s *PostgresStore) SearchDocuments(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx, searchDocuments, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return docs, nil
}

const deleteDocument = `-- name: DeleteDocument :exec
DELETE FROM documents
WHERE id = $1 AND user_id = $2;
`

func (s *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteDocument, id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("error deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
