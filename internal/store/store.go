package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Document is a persisted text document.
type Document struct {
	ID            string
	Title         string
	Content       string
	OwnerID       int64
	Collaborators []int64
	LastUpdated   time.Time
	CreatedAt     time.Time
}

// DocumentPatch holds the fields of a partial document update. Nil fields are left unchanged.
type DocumentPatch struct {
	Title   *string
	Content *string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	// Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// DocumentStore handles document persistence. Every lookup is scoped to the
// owner; a document owned by someone else is reported as ErrNotFound.
type DocumentStore interface {
	// CreateDocument inserts a fully populated document.
	CreateDocument(ctx context.Context, doc *Document) error

	// GetDocument retrieves a document owned by ownerID.
	GetDocument(ctx context.Context, id string, ownerID int64) (*Document, error)

	// UpdateDocument applies patch and sets LastUpdated to updatedAt.
	UpdateDocument(ctx context.Context, id string, ownerID int64, patch DocumentPatch, updatedAt time.Time) (*Document, error)

	// DeleteDocument removes a document owned by ownerID.
	DeleteDocument(ctx context.Context, id string, ownerID int64) error

	// ListDocumentsByOwner lists documents owned by ownerID, most recently updated first.
	ListDocumentsByOwner(ctx context.Context, ownerID int64) ([]*Document, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	DocumentStore

	// Close closes the underlying database connection.
	Close() error
}
