// ABOUTME: Tests for user repository operations
// ABOUTME: Covers upsert insert/merge semantics, idempotence and lookup misses

package store

import (
	"context"
	"errors"
	"testing"
)

func TestSaveUser_Insert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.SaveUser(ctx, "u1", map[string]any{"name": "Ada", "plan": "free"})
	if err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	if user.ID != "u1" {
		t.Errorf("ID mismatch: got %q, want %q", user.ID, "u1")
	}
	if user.Attributes["name"] != "Ada" {
		t.Errorf("name mismatch: got %v", user.Attributes["name"])
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestSaveUser_MergesAttributes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveUser(ctx, "u1", map[string]any{"name": "Ada", "plan": "free"}); err != nil {
		t.Fatalf("first SaveUser failed: %v", err)
	}

	user, err := s.SaveUser(ctx, "u1", map[string]any{"plan": "pro"})
	if err != nil {
		t.Fatalf("second SaveUser failed: %v", err)
	}

	// Untouched keys survive, overlapping keys take the new value.
	if user.Attributes["name"] != "Ada" {
		t.Errorf("existing attribute lost: got %v", user.Attributes["name"])
	}
	if user.Attributes["plan"] != "pro" {
		t.Errorf("attribute not updated: got %v", user.Attributes["plan"])
	}
}

func TestSaveUser_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	attrs := map[string]any{"name": "Ada", "locale": "zh"}
	first, err := s.SaveUser(ctx, "u1", attrs)
	if err != nil {
		t.Fatalf("first SaveUser failed: %v", err)
	}
	second, err := s.SaveUser(ctx, "u1", attrs)
	if err != nil {
		t.Fatalf("second SaveUser failed: %v", err)
	}

	if len(second.Attributes) != len(first.Attributes) {
		t.Errorf("attribute set changed: %v vs %v", second.Attributes, first.Attributes)
	}
	for k, v := range first.Attributes {
		if second.Attributes[k] != v {
			t.Errorf("attribute %q changed: %v vs %v", k, second.Attributes[k], v)
		}
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on upsert: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v before %v", second.UpdatedAt, first.UpdatedAt)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveUser_NilAttributes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.SaveUser(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("SaveUser with nil attributes failed: %v", err)
	}
	if user.Attributes == nil {
		t.Error("expected empty attribute map, got nil")
	}
	if len(user.Attributes) != 0 {
		t.Errorf("expected no attributes, got %v", user.Attributes)
	}
}
