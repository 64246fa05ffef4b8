// ABOUTME: HTTP server wiring for the chatvault persistence API
// ABOUTME: Owns the route table, JSON helpers and the error-to-status mapping

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/2389/chatvault/internal/backup"
	"github.com/2389/chatvault/internal/store"
)

// Server exposes the persistence operations over HTTP. It holds no
// state of its own; every request is one store or backup call.
type Server struct {
	store   *store.SQLiteStore
	backups *backup.Manager
	logger  *slog.Logger
}

// NewServer creates the API server over the given store and backup
// manager.
func NewServer(s *store.SQLiteStore, b *backup.Manager) *Server {
	return &Server{
		store:   s,
		backups: b,
		logger:  slog.Default().With("component", "api"),
	}
}

// Routes builds the route table.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/users/", s.handleUserRoutes)
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/profiles/", s.handleProfileRoutes)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/messages/", s.handleMessageHistory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/progress", s.handleProgress)
	mux.HandleFunc("/api/progress/", s.handleProgressList)
	mux.HandleFunc("/api/summaries", s.handleSummaries)
	mux.HandleFunc("/api/summaries/", s.handleSummaryList)
	mux.HandleFunc("/api/backup", s.handleBackupCreate)
	mux.HandleFunc("/api/backups", s.handleBackupList)

	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps storage and backup errors onto HTTP statuses. Raw
// internal errors are logged, never sent to the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrForeignKey):
		s.sendJSONError(w, http.StatusBadRequest, "referenced entity does not exist")
	case errors.Is(err, store.ErrBusy):
		s.sendJSONError(w, http.StatusServiceUnavailable, "storage busy, retry later")
	case errors.Is(err, backup.ErrInProgress):
		s.sendJSONError(w, http.StatusConflict, "backup already in progress")
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
