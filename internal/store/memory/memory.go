// Package memory is an in-process store.Store used for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/wiredoc-server/internal/store"
)

// Store implements store.Store on top of maps guarded by a RWMutex.
type Store struct {
	mu         sync.RWMutex
	nextUserID int64
	users      map[int64]store.User
	usernames  map[string]int64
	documents  map[string]store.Document
}

// New returns an empty memory store.
func New() *Store {
	return &Store{
		users:     make(map[int64]store.User),
		usernames: make(map[string]int64),
		documents: make(map[string]store.Document),
	}
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// CreateUser creates a new user with hashed password.
func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usernames[username]; taken {
		return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
	}
	s.nextUserID++
	user := store.User{
		ID:           s.nextUserID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[user.ID] = user
	s.usernames[username] = user.ID
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usernames[username]
	if !ok {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	user := s.users[id]
	return &user, nil
}

// CreateDocument inserts a fully populated document.
func (s *Store) CreateDocument(_ context.Context, doc *store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("insert document: %w", store.ErrConflict)
	}
	s.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

// GetDocument retrieves a document owned by ownerID.
func (s *Store) GetDocument(_ context.Context, id string, ownerID int64) (*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, fmt.Errorf("document: %w", store.ErrNotFound)
	}
	out := cloneDocument(doc)
	return &out, nil
}

// UpdateDocument applies patch and sets LastUpdated to updatedAt.
func (s *Store) UpdateDocument(_ context.Context, id string, ownerID int64, patch store.DocumentPatch, updatedAt time.Time) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, fmt.Errorf("document: %w", store.ErrNotFound)
	}
	if patch.Title != nil {
		doc.Title = *patch.Title
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}
	doc.LastUpdated = updatedAt.UTC()
	s.documents[id] = doc

	out := cloneDocument(doc)
	return &out, nil
}

// DeleteDocument removes a document owned by ownerID.
func (s *Store) DeleteDocument(_ context.Context, id string, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok || doc.OwnerID != ownerID {
		return fmt.Errorf("document: %w", store.ErrNotFound)
	}
	delete(s.documents, id)
	return nil
}

// ListDocumentsByOwner lists documents owned by ownerID, most recently updated first.
func (s *Store) ListDocumentsByOwner(_ context.Context, ownerID int64) ([]*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*store.Document, 0)
	for _, doc := range s.documents {
		if doc.OwnerID != ownerID {
			continue
		}
		out := cloneDocument(doc)
		docs = append(docs, &out)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].LastUpdated.Equal(docs[j].LastUpdated) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].LastUpdated.After(docs[j].LastUpdated)
	})
	return docs, nil
}

func cloneDocument(doc store.Document) store.Document {
	doc.Collaborators = slices.Clone(doc.Collaborators)
	if doc.Collaborators == nil {
		doc.Collaborators = []int64{}
	}
	return doc
}
