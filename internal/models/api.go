package models

import (
	"time"

	"chatstream-backend/internal/transcript"

	"github.com/google/uuid"
)

// --- Request Structs ---

// RegisterRequest defines the expected body for the register endpoint.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StreamTextRequest defines the body for the streaming generation endpoint.
// ConversationID defaults to "default" when omitted.
type StreamTextRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversationId,omitempty"`
}

// CreateDocumentRequest defines the body for uploading a document to the
// retrieval subsystem.
type CreateDocumentRequest struct {
	Content string `json:"content"`
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
// Avoid returning sensitive info like HashedPassword.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  *string   `json:"name,omitempty"`
}

// AuthResponse defines the response body for successful authentication.
// The token is also set as an HTTP-only cookie for browser clients.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is one stored conversation turn as returned by the
// history endpoint. Parts is nil for user rows and for legacy assistant
// rows that predate part capture; clients fall back to Content then.
type MessageResponse struct {
	ID             uuid.UUID         `json:"id"`
	ConversationID string            `json:"conversationId"`
	Role           string            `json:"role"`
	Content        *string           `json:"content"`
	Parts          []transcript.Part `json:"messageParts,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// ClearMessagesResponse confirms a conversation clear.
type ClearMessagesResponse struct {
	Success bool `json:"success"`
}

// DocumentResponse defines the data returned for an uploaded document.
type DocumentResponse struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDocumentsResponse wraps the document listing.
type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
}
