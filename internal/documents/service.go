// Package documents is the owner-scoped access layer for persisted documents.
// It is called from REST handlers only; the live relay never goes through it.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vovakirdan/wiredoc-server/internal/store"
)

// MaxContentBytes caps the size of a document body, both when it is stored
// and when it is relayed as a live edit.
const MaxContentBytes = 1 << 20

const maxTitleLength = 200

var (
	// ErrNotFound covers both absent documents and documents owned by someone else.
	ErrNotFound = errors.New("document not found")
	// ErrValidation is returned for malformed create or update input.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps unexpected datastore failures.
	ErrPersistence = errors.New("persistence failure")
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title   *string
	Content *string
}

// Service provides document CRUD scoped to the requesting owner.
type Service struct {
	store store.DocumentStore
	now   func() time.Time
	newID func() string
}

// NewService creates a document service backed by st.
func NewService(st store.DocumentStore) *Service {
	return &Service{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create stores a new document owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, title, content string) (*store.Document, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := &store.Document{
		ID:            s.newID(),
		Title:         title,
		Content:       content,
		OwnerID:       ownerID,
		Collaborators: []int64{},
		LastUpdated:   now,
		CreatedAt:     now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("%w: create document: %w", ErrPersistence, err)
	}
	return doc, nil
}

// Get returns the document if requesterID owns it.
func (s *Service) Get(ctx context.Context, id string, requesterID int64) (*store.Document, error) {
	doc, err := s.store.GetDocument(ctx, id, requesterID)
	if err != nil {
		return nil, translate(err, "get document")
	}
	return doc, nil
}

// Update applies patch and always refreshes LastUpdated, even when nothing changed.
func (s *Service) Update(ctx context.Context, id string, requesterID int64, patch Patch) (*store.Document, error) {
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Content != nil {
		if err := validateContent(*patch.Content); err != nil {
			return nil, err
		}
	}

	doc, err := s.store.UpdateDocument(ctx, id, requesterID, store.DocumentPatch{
		Title:   patch.Title,
		Content: patch.Content,
	}, s.now().UTC())
	if err != nil {
		return nil, translate(err, "update document")
	}
	return doc, nil
}

// Delete removes the document if requesterID owns it.
func (s *Service) Delete(ctx context.Context, id string, requesterID int64) error {
	if err := s.store.DeleteDocument(ctx, id, requesterID); err != nil {
		return translate(err, "delete document")
	}
	return nil
}

// ListOwnedBy returns requesterID's documents, most recently updated first.
func (s *Service) ListOwnedBy(ctx context.Context, requesterID int64) ([]*store.Document, error) {
	docs, err := s.store.ListDocumentsByOwner(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %w", ErrPersistence, err)
	}
	return docs, nil
}

func translate(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLength)
	}
	return title, nil
}

func validateContent(content string) error {
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", ErrValidation, MaxContentBytes)
	}
	return nil
}
