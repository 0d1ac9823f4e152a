package models

import (
	"time"

	"chatstream-backend/internal/transcript"

	"github.com/google/uuid"
)

// User represents a user in the database.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	Name           *string   `db:"name"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Message is one turn of a conversation. Content stays nullable for
// assistant rows whose prose lives in Parts; legacy rows carry only Content.
// Rows are append-only: once persisted a message is never updated.
type Message struct {
	ID             uuid.UUID         `db:"id"`
	UserID         uuid.UUID         `db:"user_id"`
	ConversationID string            `db:"conversation_id"`
	Role           string            `db:"role"` // "user", "assistant"
	Content        *string           `db:"content"`
	Parts          []transcript.Part `db:"message_parts"` // Stored as JSONB, nil for legacy rows
	Timestamp      time.Time         `db:"timestamp"`     // Server-assigned
}

// UserToken holds the linked external account tokens for a user. The token
// values are AES-GCM encrypted before they reach the database. Presence of a
// row is what unlocks the calendar/mail tool capabilities for that user.
type UserToken struct {
	ID                    uuid.UUID  `db:"id"`
	UserID                uuid.UUID  `db:"user_id"`
	Provider              string     `db:"provider"` // "google" for now
	EncryptedAccessToken  []byte     `db:"encrypted_access_token"`
	EncryptedRefreshToken []byte     `db:"encrypted_refresh_token"` // May be empty
	TokenType             string     `db:"token_type"`
	Scope                 *string    `db:"scope"`
	ExpiresAt             *time.Time `db:"expires_at"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// Document is one uploaded document available to the retrieval capability.
type Document struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
