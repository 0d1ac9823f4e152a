package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"chatstream-backend/internal/models"
	"chatstream-backend/internal/store"
)

// Custom errors for document service
var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentValidation = errors.New("document validation failed")
)

// DocumentService defines the interface for document operations. It also
// backs the search_documents capability as a tools.Retriever.
type DocumentService interface {
	CreateDocument(ctx context.Context, userID uuid.UUID, req models.CreateDocumentRequest) (*models.DocumentResponse, error)
	ListDocuments(ctx context.Context, userID uuid.UUID) (*models.ListDocumentsResponse, error)
	DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	Retrieve(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Document, error)
}

type documentService struct {
	store store.Store
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(s store.Store) DocumentService {
	return &documentService{
		store: s,
	}
}

func mapDocumentToResponse(doc *models.Document) *models.DocumentResponse {
	return &models.DocumentResponse{
		ID:        doc.ID,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}
}

// CreateDocument validates input and stores a new document.
func (s *documentService) CreateDocument(ctx context.Context, userID uuid.UUID, req models.CreateDocumentRequest) (*models.DocumentResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrDocumentValidation)
	}

	doc, err := s.store.CreateDocument(ctx, store.CreateDocumentParams{
		ID:      uuid.New(),
		UserID:  userID,
		Content: req.Content,
	})
	if err != nil {
		log.Printf("ERROR [DocumentService] CreateDocument: store call failed for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	return mapDocumentToResponse(doc), nil
}

// ListDocuments retrieves all documents for the user.
func (s *documentService) ListDocuments(ctx context.Context, userID uuid.UUID) (*models.ListDocumentsResponse, error) {
	docs, err := s.store.ListDocuments(ctx, userID)
	if err != nil {
		log.Printf("ERROR [DocumentService] ListDocuments: store call failed for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	out := make([]models.DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, *mapDocumentToResponse(&docs[i]))
	}
	return &models.ListDocumentsResponse{Documents: out}, nil
}

// DeleteDocument removes one document owned by the user.
func (s *documentService) DeleteDocument(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	if err := s.store.DeleteDocument(ctx, id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		log.Printf("ERROR [DocumentService] DeleteDocument: store call failed for ID %s, user %s: %v", id, userID, err)
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Retrieve finds documents matching the query for the capability layer.
func (s *documentService) Retrieve(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Document, error) {
	return s.store.SearchDocuments(ctx, userID, query, limit)
}
