package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstream-backend/internal/auth"
	"chatstream-backend/internal/models"
	"chatstream-backend/internal/services"
	"chatstream-backend/internal/store"
	"chatstream-backend/internal/transcript"
	"chatstream-backend/internal/upstream"
)

// gatedStore is an in-memory store.Store whose assistant-row write blocks
// until the test releases it, so tests can observe response completion
// relative to the transcript write.
type gatedStore struct {
	mu       sync.Mutex
	messages []models.Message

	assistantGate chan struct{} // write blocks until closed
	assistantDone chan struct{} // closed once the assistant row is stored
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		assistantGate: make(chan struct{}),
		assistantDone: make(chan struct{}),
	}
}

func (g *gatedStore) AppendMessage(ctx context.Context, arg store.AppendMessageParams) (*models.Message, error) {
	if arg.Role == "assistant" {
		<-g.assistantGate
		defer close(g.assistantDone)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	msg := models.Message{
		ID:             uuid.New(),
		UserID:         arg.UserID,
		ConversationID: arg.ConversationID,
		Role:           arg.Role,
		Content:        arg.Content,
		Parts:          arg.Parts,
		Timestamp:      time.Now(),
	}
	g.messages = append(g.messages, msg)
	return &msg, nil
}

func (g *gatedStore) ListMessages(context.Context, uuid.UUID, string) ([]models.Message, error) {
	return nil, nil
}

func (g *gatedStore) RecentMessages(context.Context, uuid.UUID, string, int) ([]models.Message, error) {
	return nil, nil
}

func (g *gatedStore) DeleteMessages(context.Context, uuid.UUID, string) error { return nil }

func (g *gatedStore) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, store.ErrNotFound
}

func (g *gatedStore) GetUserByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, store.ErrNotFound
}

func (g *gatedStore) CreateUser(context.Context, *models.User) error { return nil }

func (g *gatedStore) GetUserToken(context.Context, uuid.UUID) (*models.UserToken, error) {
	return nil, store.ErrNotFound
}

func (g *gatedStore) UpsertUserToken(context.Context, store.UpsertUserTokenParams) error { return nil }

func (g *gatedStore) HasLinkedAccount(context.Context, uuid.UUID) (bool, error) { return false, nil }

func (g *gatedStore) CreateDocument(context.Context, store.CreateDocumentParams) (*models.Document, error) {
	return nil, nil
}

func (g *gatedStore) ListDocuments(context.Context, uuid.UUID) ([]models.Document, error) {
	return nil, nil
}

func (g *gatedStore) SearchDocuments(context.Context, uuid.UUID, string, int) ([]models.Document, error) {
	return nil, nil
}

func (g *gatedStore) DeleteDocument(context.Context, uuid.UUID, uuid.UUID) error { return nil }

// scriptedGenerator plays back a fixed protocol stream.
type scriptedGenerator struct {
	script string
}

type scriptedStream struct {
	io.Reader
}

func (s *scriptedStream) Close() error      { return nil }
func (s *scriptedStream) FinalText() string { return "" }

func (sg *scriptedGenerator) Stream(ctx context.Context, req upstream.Request) (services.GenerationStream, error) {
	return &scriptedStream{Reader: strings.NewReader(sg.script)}, nil
}

func streamScript() string {
	var sb strings.Builder
	sb.WriteString(transcript.EncodeLine(transcript.Event{Type: transcript.EventTextDelta, Delta: "Hello there."}))
	sb.WriteString(transcript.DoneLine())
	return sb.String()
}

func TestHandleStreamTextResponseEndsBeforeTranscriptWrite(t *testing.T) {
	st := newGatedStore()
	svc := services.NewChatService(services.ChatServiceConfig{
		Store:     st,
		Generator: &scriptedGenerator{script: streamScript()},
	})
	handler := NewChatHandlers(svc)

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/ai/streamtext", strings.NewReader(`{"prompt":"hi"}`))
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, userID))
	rec := httptest.NewRecorder()

	// The assistant-row write is still gated when the handler returns; the
	// full stream must already be on the wire.
	handler.HandleStreamText(rec, req)

	assert.Equal(t, streamScript(), rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	select {
	case <-st.assistantDone:
		t.Fatal("transcript write finished before it was released")
	default:
	}

	close(st.assistantGate)
	select {
	case <-st.assistantDone:
	case <-time.After(2 * time.Second):
		t.Fatal("transcript write never completed")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.messages, 2)
	assert.Equal(t, "user", st.messages[0].Role)
	assert.Equal(t, "assistant", st.messages[1].Role)
	require.NotNil(t, st.messages[1].Content)
	assert.Equal(t, "Hello there.", *st.messages[1].Content)
}
