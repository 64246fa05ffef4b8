// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Exercises request parsing, status mapping and end-to-end persistence through the mux

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatvault/internal/backup"
	"github.com/2389/chatvault/internal/store"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	tmp := t.TempDir()
	s, err := store.NewSQLiteStore(filepath.Join(tmp, "chatvault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m, err := backup.NewManager(s, filepath.Join(tmp, "backups"), 5)
	require.NoError(t, err)

	srv := NewServer(s, m)
	return srv, srv.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createProfile(t *testing.T, h http.Handler, userID string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/users", SaveUserRequest{ID: userID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/profiles", CreateProfileRequest{UserID: userID})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[ProfileResponse](t, rec).ID
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.Users)
}

func TestUsers_SaveAndGet(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/users", SaveUserRequest{
		ID:         "u1",
		Attributes: map[string]any{"name": "Ada"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/users/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	user := decode[UserResponse](t, rec)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Ada", user.Attributes["name"])
	assert.NotEmpty(t, user.CreatedAt)
}

func TestUsers_SecondSaveMerges(t *testing.T) {
	_, h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/users", SaveUserRequest{
		ID:         "u1",
		Attributes: map[string]any{"name": "Ada", "plan": "free"},
	})
	rec := doJSON(t, h, http.MethodPost, "/api/users", SaveUserRequest{
		ID:         "u1",
		Attributes: map[string]any{"plan": "pro"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	user := decode[UserResponse](t, rec)
	assert.Equal(t, "Ada", user.Attributes["name"])
	assert.Equal(t, "pro", user.Attributes["plan"])
}

func TestUsers_MissingID(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/users", SaveUserRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers_GetNotFound(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/users/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfiles_Lifecycle(t *testing.T) {
	_, h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/users", SaveUserRequest{ID: "u1"})

	rec := doJSON(t, h, http.MethodPost, "/api/profiles", CreateProfileRequest{
		UserID: "u1",
		Config: map[string]any{"degree": "masters"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[ProfileResponse](t, rec)
	require.NotEmpty(t, created.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/profiles/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "masters", decode[ProfileResponse](t, rec).Config["degree"])

	rec = doJSON(t, h, http.MethodPut, "/api/profiles/"+created.ID, UpdateProfileRequest{
		Config: map[string]any{"degree": "phd"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "phd", decode[ProfileResponse](t, rec).Config["degree"])

	rec = doJSON(t, h, http.MethodGet, "/api/users/u1/profiles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profiles := decode[[]ProfileResponse](t, rec)
	require.Len(t, profiles, 1)
	assert.Equal(t, created.ID, profiles[0].ID)
}

func TestProfiles_UnknownUser(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/profiles", CreateProfileRequest{UserID: "nonexistent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	errResp := decode[map[string]string](t, rec)
	assert.Contains(t, errResp["error"], "referenced entity")
}

func TestMessages_AppendAndHistory(t *testing.T) {
	_, h := newTestServer(t)
	profileID := createProfile(t, h, "u1")

	for i := 0; i < 5; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/messages", AppendMessageRequest{
			ProfileID: profileID,
			Role:      store.RoleUser,
			Content:   fmt.Sprintf("m%d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/messages/"+profileID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[[]MessageResponse](t, rec)
	require.Len(t, msgs, 5)
	assert.Equal(t, "m0", msgs[0].Content)

	rec = doJSON(t, h, http.MethodGet, "/api/messages/"+profileID+"?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs = decode[[]MessageResponse](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].Content)
	assert.Equal(t, "m4", msgs[1].Content)
}

func TestMessages_Validation(t *testing.T) {
	_, h := newTestServer(t)
	profileID := createProfile(t, h, "u1")

	rec := doJSON(t, h, http.MethodPost, "/api/messages", AppendMessageRequest{
		ProfileID: profileID,
		Role:      "narrator",
		Content:   "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/messages", AppendMessageRequest{
		ProfileID: profileID,
		Role:      store.RoleUser,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/messages", AppendMessageRequest{
		ProfileID: "nonexistent",
		Role:      store.RoleUser,
		Content:   "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/messages/"+profileID+"?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats_RecordAndAggregate(t *testing.T) {
	_, h := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, h, http.MethodPost, "/api/stats", RecordStatRequest{Category: "chat"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/stats?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	counts := decode[[]StatCountResponse](t, rec)
	require.Len(t, counts, 1)
	assert.Equal(t, "chat", counts[0].Category)
	assert.Equal(t, int64(3), counts[0].Count)
}

func TestStats_MissingCategory(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/stats", RecordStatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgress_SaveAndList(t *testing.T) {
	_, h := newTestServer(t)
	profileID := createProfile(t, h, "u1")

	rec := doJSON(t, h, http.MethodPost, "/api/progress", SaveProgressRequest{
		ProfileID:  profileID,
		Category:   "tests",
		Item:       "ielts",
		Status:     store.ProgressInProgress,
		Completion: 60,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/progress/"+profileID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]ProgressResponse](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "ielts", items[0].Item)
	assert.Equal(t, 60, items[0].Completion)
}

func TestProgress_CompletionOutOfRange(t *testing.T) {
	_, h := newTestServer(t)
	profileID := createProfile(t, h, "u1")

	rec := doJSON(t, h, http.MethodPost, "/api/progress", SaveProgressRequest{
		ProfileID:  profileID,
		Category:   "tests",
		Item:       "ielts",
		Completion: 150,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaries_SaveAndList(t *testing.T) {
	_, h := newTestServer(t)
	profileID := createProfile(t, h, "u1")

	rec := doJSON(t, h, http.MethodPost, "/api/summaries", SaveSummaryRequest{
		ProfileID: profileID,
		Period:    "weekly",
		Content:   "Discussed deadlines.",
		KeyTopics: []string{"deadlines"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/summaries/"+profileID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summaries := decode[[]SummaryResponse](t, rec)
	require.Len(t, summaries, 1)
	assert.Equal(t, []string{"deadlines"}, summaries[0].KeyTopics)
}

func TestBackup_CreateAndList(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/backup", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[BackupResponse](t, rec)
	assert.NotEmpty(t, created.Name)
	assert.NotZero(t, created.SizeBytes)

	rec = doJSON(t, h, http.MethodGet, "/api/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	backups := decode[[]BackupResponse](t, rec)
	require.Len(t, backups, 1)
	assert.Equal(t, created.Name, backups[0].Name)
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)

	rec := doJSON(t, h, http.MethodDelete, "/api/users", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
