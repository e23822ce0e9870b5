package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/vovakirdan/wiredoc-server/internal/store"
	"github.com/vovakirdan/wiredoc-server/internal/store/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := New(":memory:")
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiredoc.db")

	first, err := New(path)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	if _, err := first.CreateUser(context.Background(), "alice", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if _, err := second.GetUserByUsername(context.Background(), "alice"); err != nil {
		t.Fatalf("user lost across reopen: %v", err)
	}
}

func TestNewWithSetupPropagatesError(t *testing.T) {
	_, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec("NOT VALID SQL")
		return err
	})
	if err == nil {
		t.Fatalf("expected setup error")
	}
}
