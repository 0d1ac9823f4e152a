package store

import (
	"context"
	"errors"
	"time"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/transcript"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// AppendMessageParams contains parameters for appending one message row.
// The row's timestamp is server-assigned by the database.
type AppendMessageParams struct {
	ID             uuid.UUID // Generated if uuid.Nil
	UserID         uuid.UUID
	ConversationID string
	Role           string
	Content        *string           // Nullable: assistant rows may carry parts only
	Parts          []transcript.Part // Nullable: user rows and legacy rows carry none
}

// UpsertUserTokenParams contains parameters for storing linked account
// tokens. Token bytes arrive already encrypted.
type UpsertUserTokenParams struct {
	UserID                uuid.UUID
	Provider              string
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenType             string
	Scope                 *string
	ExpiresAt             *time.Time
}

// CreateDocumentParams contains parameters for storing a document.
type CreateDocumentParams struct {
	ID      uuid.UUID // Generated if uuid.Nil
	UserID  uuid.UUID
	Content string
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Message operations. A conversation is identified by (userID,
	// conversationID); messages are append-only apart from DeleteMessages.
	AppendMessage(ctx context.Context, arg AppendMessageParams) (*models.Message, error)
	ListMessages(ctx context.Context, userID uuid.UUID, conversationID string) ([]models.Message, error)
	RecentMessages(ctx context.Context, userID uuid.UUID, conversationID string, limit int) ([]models.Message, error)
	DeleteMessages(ctx context.Context, userID uuid.UUID, conversationID string) error

	// Linked account token operations
	GetUserToken(ctx context.Context, userID uuid.UUID) (*models.UserToken, error)
	UpsertUserToken(ctx context.Context, arg UpsertUserTokenParams) error
	HasLinkedAccount(ctx context.Context, userID uuid.UUID) (bool, error)

	// Document operations (retrieval capability backing)
	CreateDocument(ctx context.Context, arg CreateDocumentParams) (*models.Document, error)
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]models.Document, error)
	SearchDocuments(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}
