// ABOUTME: HTTP API handlers for users, profiles, messages, stats, progress, summaries and backups
// ABOUTME: Thin request parsing and validation over the store and backup manager

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/chatvault/internal/backup"
	"github.com/2389/chatvault/internal/store"
)

// SaveUserRequest is the JSON request body for POST /api/users.
type SaveUserRequest struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// UserResponse is the JSON representation of a user.
type UserResponse struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// CreateProfileRequest is the JSON request body for POST /api/profiles.
type CreateProfileRequest struct {
	UserID string         `json:"user_id"`
	Config map[string]any `json:"config,omitempty"`
}

// UpdateProfileRequest is the JSON request body for PUT /api/profiles/{id}.
type UpdateProfileRequest struct {
	Config map[string]any `json:"config"`
}

// ProfileResponse is the JSON representation of a profile.
type ProfileResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Config    map[string]any `json:"config"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// AppendMessageRequest is the JSON request body for POST /api/messages.
type AppendMessageRequest struct {
	ProfileID string `json:"profile_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

// MessageResponse is the JSON representation of a transcript entry.
type MessageResponse struct {
	Seq       int64  `json:"seq"`
	ProfileID string `json:"profile_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// RecordStatRequest is the JSON request body for POST /api/stats.
type RecordStatRequest struct {
	Category string         `json:"category"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// StatCountResponse is one row of the aggregation returned by GET /api/stats.
type StatCountResponse struct {
	Date     string `json:"date"`
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// SaveProgressRequest is the JSON request body for POST /api/progress.
type SaveProgressRequest struct {
	ProfileID  string `json:"profile_id"`
	Category   string `json:"category"`
	Item       string `json:"item"`
	Status     string `json:"status,omitempty"`
	Completion int    `json:"completion,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// ProgressResponse is the JSON representation of a progress item.
type ProgressResponse struct {
	ID         int64  `json:"id"`
	ProfileID  string `json:"profile_id"`
	Category   string `json:"category"`
	Item       string `json:"item"`
	Status     string `json:"status"`
	Completion int    `json:"completion"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// SaveSummaryRequest is the JSON request body for POST /api/summaries.
type SaveSummaryRequest struct {
	ProfileID string   `json:"profile_id"`
	Period    string   `json:"period"`
	Content   string   `json:"content"`
	KeyTopics []string `json:"key_topics,omitempty"`
}

// SummaryResponse is the JSON representation of a stored summary.
type SummaryResponse struct {
	ID        int64    `json:"id"`
	ProfileID string   `json:"profile_id"`
	Period    string   `json:"period"`
	Content   string   `json:"content"`
	KeyTopics []string `json:"key_topics,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// BackupResponse is the JSON representation of one backup file.
type BackupResponse struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Users    int64  `json:"users"`
	Profiles int64  `json:"profiles"`
	Messages int64  `json:"messages"`
	Stats    int64  `json:"stats"`
}

// handleHealth handles GET /health. A failing probe reports unhealthy
// with 503 rather than an opaque error.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	h, err := s.store.Healthy(r.Context())
	if err != nil {
		s.logger.Error("health probe failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Users:    h.Users,
		Profiles: h.Profiles,
		Messages: h.Messages,
		Stats:    h.Stats,
	})
}

// handleUsers handles POST /api/users requests (create or merge-update).
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "id is required")
		return
	}

	user, err := s.store.SaveUser(r.Context(), req.ID, req.Attributes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse(user))
}

// handleUserRoutes dispatches GET /api/users/{id} and
// GET /api/users/{id}/profiles.
func (s *Server) handleUserRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		s.sendJSONError(w, http.StatusBadRequest, "user id is required")
		return
	}

	switch sub {
	case "":
		user, err := s.store.GetUser(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, userResponse(user))
	case "profiles":
		profiles, err := s.store.ListProfilesForUser(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		response := make([]ProfileResponse, 0, len(profiles))
		for _, p := range profiles {
			response = append(response, profileResponse(p))
		}
		s.writeJSON(w, http.StatusOK, response)
	default:
		s.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

// handleProfiles handles POST /api/profiles requests.
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	profile, err := s.store.CreateProfile(r.Context(), req.UserID, req.Config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, profileResponse(profile))
}

// handleProfileRoutes dispatches GET and PUT on /api/profiles/{id}.
func (s *Server) handleProfileRoutes(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
	if id == "" || strings.Contains(id, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := s.store.GetProfile(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, profileResponse(profile))
	case http.MethodPut:
		var req UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		profile, err := s.store.UpdateProfile(r.Context(), id, req.Config)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, profileResponse(profile))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleMessages handles POST /api/messages requests.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProfileID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "profile_id is required")
		return
	}
	if req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}
	switch req.Role {
	case store.RoleUser, store.RoleAssistant, store.RoleSystem:
	default:
		s.sendJSONError(w, http.StatusBadRequest, "role must be user, assistant or system")
		return
	}

	msg, err := s.store.AppendMessage(r.Context(), req.ProfileID, req.Role, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, messageResponse(msg))
}

// handleMessageHistory handles GET /api/messages/{profileID}?limit=N.
// With a limit it returns the most recent N messages, still oldest
// first.
func (s *Server) handleMessageHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profileID := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if profileID == "" || strings.Contains(profileID, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.sendJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := s.store.ListMessages(r.Context(), profileID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	response := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, messageResponse(m))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleStats handles POST /api/stats (record one usage event) and
// GET /api/stats?days=N (per-day counts by category).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req RecordStatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Category == "" {
			s.sendJSONError(w, http.StatusBadRequest, "category is required")
			return
		}
		stat, err := s.store.RecordStat(r.Context(), req.Category, req.Detail)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]any{
			"seq":        stat.Seq,
			"category":   stat.Category,
			"created_at": stat.CreatedAt.Format(time.RFC3339),
		})
	case http.MethodGet:
		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				s.sendJSONError(w, http.StatusBadRequest, "days must be a non-negative integer")
				return
			}
			days = n
		}
		counts, err := s.store.AggregateStats(r.Context(), days)
		if err != nil {
			s.writeError(w, err)
			return
		}
		response := make([]StatCountResponse, 0, len(counts))
		for _, c := range counts {
			response = append(response, StatCountResponse{Date: c.Date, Category: c.Category, Count: c.Count})
		}
		s.writeJSON(w, http.StatusOK, response)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleProgress handles POST /api/progress requests.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProfileID == "" || req.Category == "" || req.Item == "" {
		s.sendJSONError(w, http.StatusBadRequest, "profile_id, category and item are required")
		return
	}
	if req.Completion < 0 || req.Completion > 100 {
		s.sendJSONError(w, http.StatusBadRequest, "completion must be between 0 and 100")
		return
	}

	saved, err := s.store.SaveProgress(r.Context(), &store.Progress{
		ProfileID:  req.ProfileID,
		Category:   req.Category,
		Item:       req.Item,
		Status:     req.Status,
		Completion: req.Completion,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progressResponse(saved))
}

// handleProgressList handles GET /api/progress/{profileID}.
func (s *Server) handleProgressList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profileID := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if profileID == "" || strings.Contains(profileID, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	items, err := s.store.ListProgress(r.Context(), profileID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	response := make([]ProgressResponse, 0, len(items))
	for _, p := range items {
		response = append(response, progressResponse(p))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSummaries handles POST /api/summaries requests.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req SaveSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProfileID == "" || req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "profile_id and content are required")
		return
	}

	saved, err := s.store.SaveSummary(r.Context(), req.ProfileID, req.Period, req.Content, req.KeyTopics)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, summaryResponse(saved))
}

// handleSummaryList handles GET /api/summaries/{profileID}.
func (s *Server) handleSummaryList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	profileID := strings.TrimPrefix(r.URL.Path, "/api/summaries/")
	if profileID == "" || strings.Contains(profileID, "/") {
		s.sendJSONError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	summaries, err := s.store.ListSummaries(r.Context(), profileID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	response := make([]SummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		response = append(response, summaryResponse(sum))
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleBackupCreate handles POST /api/backup. A backup already in
// flight answers 409; the client retries later.
func (s *Server) handleBackupCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	info, err := s.backups.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, backupResponse(info))
}

// handleBackupList handles GET /api/backups.
func (s *Server) handleBackupList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	backups, err := s.backups.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	response := make([]BackupResponse, 0, len(backups))
	for _, b := range backups {
		response = append(response, backupResponse(b))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Attributes: u.Attributes,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  u.UpdatedAt.Format(time.RFC3339),
	}
}

func profileResponse(p *store.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Config:    p.Config,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func messageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		Seq:       m.Seq,
		ProfileID: m.ProfileID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func progressResponse(p *store.Progress) ProgressResponse {
	return ProgressResponse{
		ID:         p.ID,
		ProfileID:  p.ProfileID,
		Category:   p.Category,
		Item:       p.Item,
		Status:     p.Status,
		Completion: p.Completion,
		Notes:      p.Notes,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  p.UpdatedAt.Format(time.RFC3339),
	}
}

func summaryResponse(sum *store.Summary) SummaryResponse {
	return SummaryResponse{
		ID:        sum.ID,
		ProfileID: sum.ProfileID,
		Period:    sum.Period,
		Content:   sum.Content,
		KeyTopics: sum.KeyTopics,
		CreatedAt: sum.CreatedAt.Format(time.RFC3339),
	}
}

func backupResponse(b *backup.Info) BackupResponse {
	return BackupResponse{
		Name:      b.Name,
		SizeBytes: b.Size,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}
