package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/services"
	"chatstream-backend/pkg/httputil"
)

// DocumentHandlers handles HTTP requests for the user's saved documents.
type DocumentHandlers struct {
	documentService services.DocumentService
}

// NewDocumentHandlers creates a new DocumentHandlers instance.
func NewDocumentHandlers(documentService services.DocumentService) *DocumentHandlers {
	return &DocumentHandlers{
		documentService: documentService,
	}
}

// HandleCreateDocument handles POST /v1/documents.
func (h *DocumentHandlers) HandleCreateDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	var req models.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	defer r.Body.Close()

	doc, err := h.documentService.CreateDocument(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, services.ErrDocumentValidation) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("CreateDocument handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to save document")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// HandleListDocuments handles GET /v1/documents.
func (h *DocumentHandlers) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	docs, err := h.documentService.ListDocuments(r.Context(), userID)
	if err != nil {
		log.Printf("ListDocuments handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// HandleDeleteDocument handles DELETE /v1/documents/{documentID}.
func (h *DocumentHandlers) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserIDFromContext(r.Context(), w)
	if err != nil {
		return
	}

	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid document ID")
		return
	}

	if err := h.documentService.DeleteDocument(r.Context(), docID, userID); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			httputil.RespondError(w, http.StatusNotFound, "Document not found")
			return
		}
		log.Printf("DeleteDocument handler failed for user %s: %v", userID, err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
