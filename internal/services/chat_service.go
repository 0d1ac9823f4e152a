package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"
	"chatstream-backend/internal/tools"
	"chatstream-backend/internal/transcript"
	"chatstream-backend/internal/upstream"
)

// DefaultConversationID is used when a request does not name a conversation.
const DefaultConversationID = "default"

// persistTimeout bounds the detached transcript write after the stream ends.
const persistTimeout = 30 * time.Second

const systemPrompt = "You are a helpful assistant. Use the available tools when they help answer the user's question, and answer concisely."

// ErrEmptyPrompt is returned when a stream request carries no prompt text.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// GenerationStream is a live assistant turn: protocol lines readable until
// EOF, plus the full generated text once finished.
type GenerationStream interface {
	io.ReadCloser
	FinalText() string
}

// Generator produces assistant turns. Satisfied by the upstream client via
// a thin adapter; tests substitute scripted streams.
type Generator interface {
	Stream(ctx context.Context, req upstream.Request) (GenerationStream, error)
}

// ToolSession is an open connection to an external tool broker.
type ToolSession interface {
	ListTools() ([]tools.Capability, error)
	Close() error
}

// BrokerDialer opens a tool broker session for one request. A nil dialer
// means no broker is configured.
type BrokerDialer func(ctx context.Context) (ToolSession, error)

// ChatService drives the streaming chat turn: record the user message,
// assemble history and capabilities, relay the generated stream to the
// client while accumulating the transcript, then persist the assistant
// message after the stream ends.
type ChatService struct {
	store         store.Store
	generator     Generator
	base          *tools.Registry
	google        *tools.GoogleTools
	notion        *tools.NotionTools
	slack         *tools.SlackTools
	retriever     tools.Retriever
	brokerDial    BrokerDialer
	historyWindow int
}

// ChatServiceConfig collects the chat service dependencies. Optional tool
// providers may be nil.
type ChatServiceConfig struct {
	Store         store.Store
	Generator     Generator
	Google        *tools.GoogleTools
	Notion        *tools.NotionTools
	Slack         *tools.SlackTools
	Retriever     tools.Retriever
	BrokerDial    BrokerDialer
	HistoryWindow int
}

// NewChatService creates a new ChatService.
func NewChatService(cfg ChatServiceConfig) *ChatService {
	base := tools.NewRegistry()
	tools.RegisterTime(base, nil)

	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = 10
	}

	return &ChatService{
		store:         cfg.Store,
		generator:     cfg.Generator,
		base:          base,
		google:        cfg.Google,
		notion:        cfg.Notion,
		slack:         cfg.Slack,
		retriever:     cfg.Retriever,
		brokerDial:    cfg.BrokerDial,
		historyWindow: historyWindow,
	}
}

// StreamChat runs one chat turn, writing protocol lines to sink as they are
// generated. The returned channel reports the outcome of the detached
// transcript write; the error return is the terminal stream error, if any.
// Client disconnects do not abort generation or persistence.
func (s *ChatService) StreamChat(ctx context.Context, userID uuid.UUID, req models.StreamTextRequest, sink io.Writer) (<-chan error, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = DefaultConversationID
	}

	userRow, err := s.store.AppendMessage(ctx, store.AppendMessageParams{
		UserID:         userID,
		ConversationID: conversationID,
		Role:           "user",
		Content:        &prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}

	history, err := s.recentHistory(ctx, userID, conversationID, userRow.ID)
	if err != nil {
		// History is an enrichment; generate without it rather than fail.
		log.Printf("WARN [ChatService] StreamChat: failed to load history for user %s: %v", userID, err)
		history = nil
	}

	registry, release := s.resolveCapabilities(ctx, userID)

	messages := make([]upstream.ChatMessage, 0, 2)
	messages = append(messages, upstream.ChatMessage{Role: "system", Content: buildSystemPrompt(history)})
	messages = append(messages, upstream.ChatMessage{Role: "user", Content: prompt})

	// The generation must outlive a dropped client connection so the
	// transcript can still be persisted.
	genCtx := context.WithoutCancel(ctx)
	stream, err := s.generator.Stream(genCtx, upstream.Request{
		Messages:     messages,
		Capabilities: registry,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to start generation: %w", err)
	}

	acc := transcript.NewAccumulator()
	tee := transcript.NewTee(acc)
	relayErr := tee.Relay(stream, sink)
	if relayErr != nil {
		log.Printf("WARN [ChatService] StreamChat: stream ended early for user %s: %v", userID, relayErr)
	}
	if tee.SinkBroken() {
		log.Printf("WARN [ChatService] StreamChat: client went away mid-stream for user %s; transcript still recorded", userID)
	}

	parts := acc.Finalize(stream.FinalText())

	persistDone := make(chan error, 1)
	go func() {
		defer release()
		persistDone <- s.persistAssistantTurn(userID, conversationID, parts)
		close(persistDone)
	}()

	return persistDone, relayErr
}

// persistAssistantTurn writes the accumulated transcript on its own context
// so a dropped request cannot cancel it.
func (s *ChatService) persistAssistantTurn(userID uuid.UUID, conversationID string, parts []transcript.Part) error {
	if len(parts) == 0 {
		log.Printf("WARN [ChatService] persistAssistantTurn: empty generation for user %s; nothing to record", userID)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	content := transcript.PlainText(parts)
	var contentPtr *string
	if content != "" {
		contentPtr = &content
	}

	_, err := s.store.AppendMessage(ctx, store.AppendMessageParams{
		UserID:         userID,
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        contentPtr,
		Parts:          parts,
	})
	if err != nil {
		log.Printf("ERROR [ChatService] persistAssistantTurn: failed to record assistant message for user %s: %v", userID, err)
		return err
	}
	return nil
}

// recentHistory loads the most recent conversation turns, oldest first,
// excluding the just-inserted user row.
func (s *ChatService) recentHistory(ctx context.Context, userID uuid.UUID, conversationID string, excludeID uuid.UUID) ([]models.Message, error) {
	recent, err := s.store.RecentMessages(ctx, userID, conversationID, s.historyWindow+1)
	if err != nil {
		return nil, err
	}

	// RecentMessages returns newest first.
	history := make([]models.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].ID == excludeID {
			continue
		}
		history = append(history, recent[i])
	}
	if len(history) > s.historyWindow {
		history = history[len(history)-s.historyWindow:]
	}
	return history, nil
}

// buildSystemPrompt embeds prior turns in the system prompt rather than as
// chat messages, matching how replayed transcripts summarize a conversation.
func buildSystemPrompt(history []models.Message) string {
	if len(history) == 0 {
		return systemPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n<past-conversation>\n")
	for _, msg := range history {
		content := ""
		if msg.Content != nil {
			content = *msg.Content
		}
		if content == "" && len(msg.Parts) > 0 {
			content = transcript.PlainText(msg.Parts)
		}
		if content == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", msg.Role, content)
	}
	sb.WriteString("</past-conversation>")
	return sb.String()
}

// resolveCapabilities assembles the capability set for one request. Broker
// failures disable broker tools but never fail the turn; the returned
// release function closes the broker session and is safe to call more than
// once.
func (s *ChatService) resolveCapabilities(ctx context.Context, userID uuid.UUID) (*tools.Registry, func()) {
	registry := s.base.Clone()

	if s.retriever != nil {
		tools.RegisterRetriever(registry, s.retriever, userID)
	}
	if s.google != nil && s.google.Available(ctx, userID) {
		s.google.Register(registry, userID)
	}
	if s.notion != nil {
		s.notion.Register(registry)
	}
	if s.slack != nil {
		s.slack.Register(registry)
	}

	release := func() {}
	if s.brokerDial != nil {
		session, err := s.brokerDial(ctx)
		if err != nil {
			log.Printf("WARN [ChatService] resolveCapabilities: tool broker unavailable: %v", err)
			return registry, release
		}

		brokerTools, err := session.ListTools()
		if err != nil {
			log.Printf("WARN [ChatService] resolveCapabilities: failed to list broker tools: %v", err)
			session.Close()
			return registry, release
		}
		for _, cap := range brokerTools {
			registry.Register(cap)
		}

		var once sync.Once
		release = func() {
			once.Do(func() {
				if err := session.Close(); err != nil {
					log.Printf("WARN [ChatService] resolveCapabilities: failed to close broker session: %v", err)
				}
			})
		}
	}
	return registry, release
}

// GetMessages returns the full conversation, oldest first, with transcript
// parts included for assistant rows.
func (s *ChatService) GetMessages(ctx context.Context, userID uuid.UUID, conversationID string) ([]models.MessageResponse, error) {
	if conversationID == "" {
		conversationID = DefaultConversationID
	}

	rows, err := s.store.ListMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := make([]models.MessageResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.MessageResponse{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			Role:           row.Role,
			Content:        row.Content,
			Parts:          row.Parts,
			Timestamp:      row.Timestamp,
		})
	}
	return out, nil
}

// ClearMessages deletes the conversation's rows.
func (s *ChatService) ClearMessages(ctx context.Context, userID uuid.UUID, conversationID string) error {
	if conversationID == "" {
		conversationID = DefaultConversationID
	}
	if err := s.store.DeleteMessages(ctx, userID, conversationID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// UpstreamGenerator adapts the upstream client to the Generator interface.
type UpstreamGenerator struct {
	Client *upstream.Client
}

func (g UpstreamGenerator) Stream(ctx context.Context, req upstream.Request) (GenerationStream, error) {
	stream, err := g.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
