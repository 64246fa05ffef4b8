// ABOUTME: Tests for profile repository operations
// ABOUTME: Covers foreign-key enforcement, full-replace update and per-user listing order

package store

import (
	"context"
	"errors"
	"testing"
)

func TestCreateAndGetProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveUser(ctx, "u1", nil); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	created, err := s.CreateProfile(ctx, "u1", map[string]any{"degree": "masters", "budget": float64(40000)})
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("profile id not generated")
	}

	got, err := s.GetProfile(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID mismatch: got %q, want %q", got.UserID, "u1")
	}
	if got.Config["degree"] != "masters" {
		t.Errorf("config mismatch: got %v", got.Config)
	}
	if got.Config["budget"] != float64(40000) {
		t.Errorf("budget mismatch: got %v", got.Config["budget"])
	}
}

func TestCreateProfile_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateProfile(ctx, "nonexistent", map[string]any{})
	if !errors.Is(err, ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}

	// The failed insert must not leave a row behind.
	h, err := s.Healthy(ctx)
	if err != nil {
		t.Fatalf("Healthy failed: %v", err)
	}
	if h.Profiles != 0 {
		t.Errorf("expected 0 profiles after rejected insert, got %d", h.Profiles)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetProfile(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfile_ReplacesConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveUser(ctx, "u1", nil); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	created, err := s.CreateProfile(ctx, "u1", map[string]any{"degree": "masters", "gpa": 3.5})
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	updated, err := s.UpdateProfile(ctx, created.ID, map[string]any{"degree": "phd"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	// Full replace: keys absent from the new document are gone.
	if updated.Config["degree"] != "phd" {
		t.Errorf("degree not updated: got %v", updated.Config["degree"])
	}
	if _, ok := updated.Config["gpa"]; ok {
		t.Errorf("old config key survived full replace: %v", updated.Config)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v vs %v", updated.CreatedAt, created.CreatedAt)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpdateProfile(context.Background(), "nonexistent", map[string]any{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListProfilesForUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveUser(ctx, "u1", nil); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	if _, err := s.SaveUser(ctx, "u2", nil); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	var want []string
	for i := 0; i < 3; i++ {
		p, err := s.CreateProfile(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("CreateProfile failed: %v", err)
		}
		want = append(want, p.ID)
	}
	// A profile for another user must not leak into u1's listing.
	if _, err := s.CreateProfile(ctx, "u2", nil); err != nil {
		t.Fatalf("CreateProfile for u2 failed: %v", err)
	}

	profiles, err := s.ListProfilesForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListProfilesForUser failed: %v", err)
	}
	if len(profiles) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(profiles), len(want))
	}
	for i, p := range profiles {
		if p.ID != want[i] {
			t.Errorf("creation order violated at %d: got %q, want %q", i, p.ID, want[i])
		}
	}
}

func TestListProfilesForUser_Empty(t *testing.T) {
	s := newTestStore(t)

	profiles, err := s.ListProfilesForUser(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("ListProfilesForUser failed: %v", err)
	}
	if profiles == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(profiles) != 0 {
		t.Errorf("expected no profiles, got %d", len(profiles))
	}
}
