package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/internal/config"
	"storyreel/internal/store"
	"storyreel/internal/types"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:", hclog.NewNullLogger())
	require.NoError(t, err)
	cfg := &config.ServerConfig{Enabled: true, Addr: ":0"}
	return New(cfg, db.Sessions(), hclog.NewNullLogger()), db
}

func seedSession(t *testing.T, db *store.DB, id string, stage types.Stage) *types.Session {
	t.Helper()
	sess := types.NewSession(&types.SourceItem{ID: id, Title: "story " + id}, "", time.Now())
	sess.Stage = stage
	require.NoError(t, db.Sessions().Save(sess))
	return sess
}

func TestHealthReportsStageCounts(t *testing.T) {
	srv, db := testServer(t)
	seedSession(t, db, "a", types.StageScripting)
	seedSession(t, db, "b", types.StageDone)
	seedSession(t, db, "c", types.StageDone)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status   string         `json:"status"`
		Sessions map[string]int `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Sessions["scripting"])
	assert.Equal(t, 2, body.Sessions["done"])
}

func TestListSessionsReturnsSummaries(t *testing.T) {
	srv, db := testServer(t)
	seedSession(t, db, "a", types.StageUploading)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, types.SessionID("a"), body.Sessions[0].ID)
	assert.Equal(t, "uploading", body.Sessions[0].Stage)
	assert.Equal(t, "story a", body.Sessions[0].Title)
}

func TestListSessionsRejectsBadLimit(t *testing.T) {
	srv, _ := testServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=zero", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	srv, _ := testServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/sess_missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelSessionSetsFlag(t *testing.T) {
	srv, db := testServer(t)
	sess := seedSession(t, db, "a", types.StageSynthesizing)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/cancel", nil))

	require.Equal(t, http.StatusAccepted, w.Code)
	got, err := db.Sessions().Load(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
}

func TestCancelTerminalSessionConflicts(t *testing.T) {
	srv, db := testServer(t)
	sess := seedSession(t, db, "a", types.StageDone)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/cancel", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}
