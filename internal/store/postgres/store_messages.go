package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"
	"chatstream-backend/internal/transcript"

	"github.com/google/uuid"
)

const appendMessage = `-- name: AppendMessage :one
INSERT INTO messages (
    id, user_id, conversation_id, role, content, message_parts
) VALUES (
    $1, $2, $3, $4, $5, $6
)
RETURNING id, user_id, conversation_id, role, content, message_parts, timestamp;
`

// AppendMessage inserts one message row. The timestamp is assigned by the
// database so ordering within a conversation follows insert order.
func (s *PostgresStore) AppendMessage(ctx context.Context, arg store.AppendMessageParams) (*models.Message, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	// Parts marshal to a JSONB column; nil parts store SQL NULL so legacy
	// readers see the same shape the original rows had.
	var partsJSON []byte
	if len(arg.Parts) > 0 {
		var err error
		partsJSON, err = json.Marshal(arg.Parts)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message parts: %w", err)
		}
	}

	row := s.db.QueryRow(ctx, appendMessage,
		id,
		arg.UserID,
		arg.ConversationID,
		arg.Role,
		arg.Content,
		partsJSON,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("error scanning appended message: %w", err)
	}
	return msg, nil
}

const listMessages = `-- name: ListMessages :many
SELECT id, user_id, conversation_id, role, content, message_parts, timestamp
FROM messages
WHERE user_id = $1 AND conversation_id = $2
ORDER BY timestamp ASC;
`

// ListMessages returns all rows for (userID, conversationID), oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, userID uuid.UUID, conversationID string) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, listMessages, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var items []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		items = append(items, *msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}

const recentMessages = `-- name: RecentMessages :many
SELECT id, user_id, conversation_id, role, content, message_parts, timestamp
FROM messages
WHERE user_id = $1 AND conversation_id = $2
ORDER BY timestamp DESC
LIMIT $3;
`

// RecentMessages returns the N most recent rows, newest first. Callers
// building prompt context exclude the just-inserted user row themselves.
func (s *PostgresStore) RecentMessages(ctx context.Context, userID uuid.UUID, conversationID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, recentMessages, userID, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent messages: %w", err)
	}
	defer rows.Close()

	var items []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning recent message row: %w", err)
		}
		items = append(items, *msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent message rows: %w", err)
	}
	return items, nil
}

const deleteMessages = `-- name: DeleteMessages :exec
DELETE FROM messages
WHERE user_id = $1 AND conversation_id = $2;
`

// DeleteMessages removes every row of the conversation. Clearing an already
// empty conversation is not an error.
func (s *PostgresStore) DeleteMessages(ctx context.Context, userID uuid.UUID, conversationID string) error {
	tag, err := s.db.Exec(ctx, deleteMessages, userID, conversationID)
	if err != nil {
		return fmt.Errorf("error deleting messages: %w", err)
	}
	log.Printf("[PostgresStore] DeleteMessages: removed %d rows for user %s conversation %q", tag.RowsAffected(), userID, conversationID)
	return nil
}

// scanner matches both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*models.Message, error) {
	var msg models.Message
	var partsJSON []byte
	if err := row.Scan(
		&msg.ID,
		&msg.UserID,
		&msg.ConversationID,
		&msg.Role,
		&msg.Content,
		&partsJSON,
		&msg.Timestamp,
	); err != nil {
		return nil, err
	}
	if len(partsJSON) > 0 {
		var parts []transcript.Part
		if err := json.Unmarshal(partsJSON, &parts); err != nil {
			// A corrupted parts column must not make history unreadable;
			// the row degrades to its plain content.
			log.Printf("WARN [PostgresStore] scanMessage: unreadable message_parts for message %s: %v", msg.ID, err)
		} else {
			msg.Parts = parts
		}
	}
	return &msg, nil
}
