// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/wiredoc-server/internal/store"
)

// Run exercises newStore against the store.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("document owner scoping", func(t *testing.T) { testOwnerScoping(t, newStore(t)) })
	t.Run("document update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("document delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("document list order", func(t *testing.T) { testListOrder(t, newStore(t)) })
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if alice.ID == 0 || alice.Username != "alice" {
		t.Fatalf("unexpected user: %+v", alice)
	}

	if _, err := st.CreateUser(ctx, "alice", "other"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}

	byName, err := st.GetUserByUsername(ctx, "alice")
	if err != nil || byName.ID != alice.ID || byName.PasswordHash != "hash" {
		t.Fatalf("get by username: %+v, %v", byName, err)
	}
	byID, err := st.GetUserByID(ctx, alice.ID)
	if err != nil || byID.Username != "alice" {
		t.Fatalf("get by id: %+v, %v", byID, err)
	}

	if _, err := st.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetUserByID(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func newDocument(id string, owner int64, at time.Time) *store.Document {
	return &store.Document{
		ID:          id,
		Title:       "title " + id,
		Content:     "content " + id,
		OwnerID:     owner,
		LastUpdated: at,
		CreatedAt:   at,
	}
}

func testOwnerScoping(t *testing.T, st store.Store) {
	ctx := context.Background()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	doc := newDocument("d1", 1, now)
	doc.Collaborators = []int64{2, 3}
	if err := st.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if err := st.CreateDocument(ctx, newDocument("d1", 1, now)); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate id, got %v", err)
	}

	got, err := st.GetDocument(ctx, "d1", 1)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Title != "title d1" || got.Content != "content d1" || got.OwnerID != 1 {
		t.Fatalf("unexpected document: %+v", got)
	}
	if len(got.Collaborators) != 2 || got.Collaborators[0] != 2 || got.Collaborators[1] != 3 {
		t.Fatalf("collaborators = %v, want [2 3]", got.Collaborators)
	}
	if !got.LastUpdated.Equal(now) || !got.CreatedAt.Equal(now) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	if _, err := st.GetDocument(ctx, "d1", 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
	if _, err := st.GetDocument(ctx, "missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
	docs, err := st.ListDocumentsByOwner(ctx, 2)
	if err != nil || len(docs) != 0 {
		t.Fatalf("other owner should see nothing: %v, %v", docs, err)
	}
}

func testUpdate(t *testing.T, st store.Store) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := st.CreateDocument(ctx, newDocument("d1", 1, created)); err != nil {
		t.Fatalf("create document: %v", err)
	}

	later := created.Add(time.Hour)
	content := "new content"
	got, err := st.UpdateDocument(ctx, "d1", 1, store.DocumentPatch{Content: &content}, later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Content != content || got.Title != "title d1" {
		t.Fatalf("patch applied incorrectly: %+v", got)
	}
	if !got.LastUpdated.Equal(later) || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected timestamps: %+v", got)
	}

	// An empty patch still bumps LastUpdated.
	latest := later.Add(time.Minute)
	got, err = st.UpdateDocument(ctx, "d1", 1, store.DocumentPatch{}, latest)
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if !got.LastUpdated.Equal(latest) || got.Content != content {
		t.Fatalf("empty patch result: %+v", got)
	}

	title := "stolen"
	if _, err := st.UpdateDocument(ctx, "d1", 2, store.DocumentPatch{Title: &title}, latest); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
	if _, err := st.UpdateDocument(ctx, "missing", 1, store.DocumentPatch{Title: &title}, latest); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}

	got, err = st.GetDocument(ctx, "d1", 1)
	if err != nil || got.Title != "title d1" {
		t.Fatalf("foreign update leaked: %+v, %v", got, err)
	}
}

func testDelete(t *testing.T, st store.Store) {
	ctx := context.Background()
	if err := st.CreateDocument(ctx, newDocument("d1", 1, time.Now())); err != nil {
		t.Fatalf("create document: %v", err)
	}

	if err := st.DeleteDocument(ctx, "d1", 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
	if err := st.DeleteDocument(ctx, "d1", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteDocument(ctx, "d1", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := st.GetDocument(ctx, "d1", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func testListOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := st.CreateDocument(ctx, newDocument(id, 1, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := st.CreateDocument(ctx, newDocument("x", 2, base)); err != nil {
		t.Fatalf("create x: %v", err)
	}
	if _, err := st.UpdateDocument(ctx, "a", 1, store.DocumentPatch{}, base.Add(time.Hour)); err != nil {
		t.Fatalf("touch a: %v", err)
	}

	docs, err := st.ListDocumentsByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "c" || ids[2] != "b" {
		t.Fatalf("order = %v, want [a c b]", ids)
	}
}
