package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/services"
	"chatstream-backend/pkg/httputil"
)

// ChatHandlers handles HTTP requests for the streaming chat endpoints.
type ChatHandlers struct {
	chatService *services.ChatService
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(chatService *services.ChatService) *ChatHandlers {
	return &ChatHandlers{
		chatService: chatService,
	}
}

// flushWriter flushes after every write so protocol lines reach the client
// as they are generated.
type flushWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil && fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}

func (fw flushWriter) Flush() {
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
}

// HandleStreamText handles POST /v1/ai/streamtext. The response body is the
// protocol line stream; errors before the first byte are reported as JSON.
func (h *ChatHandlers) HandleStreamText(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	var req models.StreamTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	persistDone, err := h.chatService.StreamChat(r.Context(), userID, req, flushWriter{w: w, flusher: flusher})
	if err != nil {
		// Nothing has been written yet when StreamChat fails up front.
		switch {
		case errors.Is(err, services.ErrEmptyPrompt):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("StreamText handler failed for user %s: %v", userID, err)
			httputil.RespondError(w, http.StatusInternalServerError, "Failed to generate response")
		}
		return
	}

	// The transcript write runs detached; the response ends as soon as the
	// relay drains. The client sees the full response even when the write
	// later fails.
	go func() {
		if persistErr := <-persistDone; persistErr != nil {
			log.Printf("StreamText handler: transcript write failed for user %s: %v", userID, persistErr)
		}
	}()
}

// HandleGetMessages handles GET /v1/ai/messages.
func (h *ChatHandlers) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	conversationID := r.URL.Query().Get("conversationId")

	messages, err := h.chatService.GetMessages(r.Context(), userID, conversationID)
	if err != nil {
		log.Printf("GetMessages handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messages)
}

// HandleClearMessages handles DELETE /v1/ai/messages.
func (h *ChatHandlers) HandleClearMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	conversationID := r.URL.Query().Get("conversationId")

	if err := h.chatService.ClearMessages(r.Context(), userID, conversationID); err != nil {
		log.Printf("ClearMessages handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to clear messages")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.ClearMessagesResponse{Success: true})
}
