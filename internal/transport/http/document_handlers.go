package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredoc-server/internal/documents"
	"github.com/vovakirdan/wiredoc-server/internal/store"
)

// DocumentHandlers provides HTTP handlers for owner-scoped document CRUD.
type DocumentHandlers struct {
	docs *documents.Service
	log  *zerolog.Logger
}

// NewDocumentHandlers creates a new document handlers instance.
func NewDocumentHandlers(docs *documents.Service, logger *zerolog.Logger) *DocumentHandlers {
	return &DocumentHandlers{
		docs: docs,
		log:  logger,
	}
}

// CreateDocumentRequest represents the create document request body.
type CreateDocumentRequest struct {
	Title   string `json:"title" binding:"required,max=200"`
	Content string `json:"content"`
}

// UpdateDocumentRequest is a partial update; omitted fields are unchanged.
type UpdateDocumentRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=200"`
	Content *string `json:"content"`
}

// DocumentResponse represents a document in API responses.
type DocumentResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Owner         int64     `json:"owner"`
	Collaborators []int64   `json:"collaborators"`
	LastUpdated   time.Time `json:"lastUpdated"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

func toDocumentResponse(doc *store.Document) DocumentResponse {
	collaborators := doc.Collaborators
	if collaborators == nil {
		collaborators = []int64{}
	}
	return DocumentResponse{
		ID:            doc.ID,
		Title:         doc.Title,
		Content:       doc.Content,
		Owner:         doc.OwnerID,
		Collaborators: collaborators,
		LastUpdated:   doc.LastUpdated.UTC(),
		CreatedAt:     doc.CreatedAt.UTC(),
	}
}

// ListDocuments returns the caller's documents.
// GET /api/documents
func (h *DocumentHandlers) ListDocuments(c *gin.Context) {
	uid, ok := h.requesterID(c)
	if !ok {
		return
	}

	docs, err := h.docs.ListOwnedBy(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	response := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		response = append(response, toDocumentResponse(doc))
	}

	h.log.Debug().Int64("user_id", uid).Int("document_count", len(docs)).Msg("documents listed")
	c.JSON(http.StatusOK, response)
}

// CreateDocument creates a document owned by the caller.
// POST /api/documents
func (h *DocumentHandlers) CreateDocument(c *gin.Context) {
	uid, ok := h.requesterID(c)
	if !ok {
		return
	}

	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create document request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	doc, err := h.docs.Create(c.Request.Context(), uid, req.Title, req.Content)
	if err != nil {
		h.writeError(c, err, "")
		return
	}

	h.log.Info().Str("document_id", doc.ID).Int64("owner_id", uid).Msg("document created")
	c.JSON(http.StatusCreated, toDocumentResponse(doc))
}

// GetDocument returns one of the caller's documents.
// GET /api/documents/:id
func (h *DocumentHandlers) GetDocument(c *gin.Context) {
	uid, ok := h.requesterID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	doc, err := h.docs.Get(c.Request.Context(), id, uid)
	if err != nil {
		h.writeError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// UpdateDocument patches title and/or content.
// PATCH /api/documents/:id
func (h *DocumentHandlers) UpdateDocument(c *gin.Context) {
	uid, ok := h.requesterID(c)
	if !ok {
		return
	}

	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update document request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	id := c.Param("id")
	doc, err := h.docs.Update(c.Request.Context(), id, uid, documents.Patch{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		h.writeError(c, err, id)
		return
	}

	h.log.Debug().Str("document_id", id).Int64("user_id", uid).Msg("document updated")
	c.JSON(http.StatusOK, toDocumentResponse(doc))
}

// DeleteDocument removes one of the caller's documents.
// DELETE /api/documents/:id
func (h *DocumentHandlers) DeleteDocument(c *gin.Context) {
	uid, ok := h.requesterID(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.docs.Delete(c.Request.Context(), id, uid); err != nil {
		h.writeError(c, err, id)
		return
	}

	h.log.Info().Str("document_id", id).Int64("user_id", uid).Msg("document deleted")
	c.JSON(http.StatusOK, MessageResponse{Message: "document deleted"})
}

// requesterID reads the authenticated user id set by AuthMiddleware.
func (h *DocumentHandlers) requesterID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, false
	}

	uid, ok := userID.(int64)
	if !ok {
		h.log.Error().Msg("invalid user_id type in context")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, false
	}
	return uid, true
}

func (h *DocumentHandlers) writeError(c *gin.Context, err error, documentID string) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "document not found"})
	case errors.Is(err, documents.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Str("document_id", documentID).Msg("document request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
