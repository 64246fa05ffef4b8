// ABOUTME: Tests for the SQLite storage engine
// ABOUTME: Covers file creation, schema idempotence, health probe and concurrent writes

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// newTestStore creates a store backed by a temp file that is cleaned
// up with the test.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "chatvault.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "chatvault.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_SchemaIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chatvault.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}

	ctx := context.Background()
	if _, err := s.SaveUser(ctx, "u1", map[string]any{"name": "Ada"}); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	s.Close()

	// Reopening runs schema creation again; existing data must survive.
	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s2.Close()

	user, err := s2.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser after reopen failed: %v", err)
	}
	if user.Attributes["name"] != "Ada" {
		t.Errorf("attributes lost across reopen: %v", user.Attributes)
	}
}

func TestHealthy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h, err := s.Healthy(ctx)
	if err != nil {
		t.Fatalf("Healthy failed: %v", err)
	}
	if h.Users != 0 || h.Profiles != 0 || h.Messages != 0 || h.Stats != 0 {
		t.Errorf("expected empty counts, got %+v", h)
	}

	if _, err := s.SaveUser(ctx, "u1", nil); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	if _, err := s.RecordStat(ctx, "chat", nil); err != nil {
		t.Fatalf("RecordStat failed: %v", err)
	}

	h, err = s.Healthy(ctx)
	if err != nil {
		t.Fatalf("Healthy failed: %v", err)
	}
	if h.Users != 1 {
		t.Errorf("expected 1 user, got %d", h.Users)
	}
	if h.Stats != 1 {
		t.Errorf("expected 1 stat, got %d", h.Stats)
	}
}

func TestConcurrentWrites_NoneLost(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chatvault.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	ctx := context.Background()
	user, err := s.SaveUser(ctx, "writer", nil)
	if err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	profile, err := s.CreateProfile(ctx, user.ID, nil)
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	const writers = 8
	const perWriter = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := s.AppendMessage(ctx, profile.ID, RoleUser, fmt.Sprintf("w%d-m%d", w, i)); err != nil {
					errs <- err
				}
				if _, err := s.SaveUser(ctx, fmt.Sprintf("user-%d", w), map[string]any{"i": i}); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}

	msgs, err := s.ListMessages(ctx, profile.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != writers*perWriter {
		t.Errorf("lost writes: got %d messages, want %d", len(msgs), writers*perWriter)
	}
	s.Close()

	// The file must reopen cleanly after concurrent write traffic.
	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen after concurrent writes failed: %v", err)
	}
	defer s2.Close()

	h, err := s2.Healthy(ctx)
	if err != nil {
		t.Fatalf("Healthy after reopen failed: %v", err)
	}
	if h.Messages != writers*perWriter {
		t.Errorf("row count after reopen: got %d, want %d", h.Messages, writers*perWriter)
	}
}
