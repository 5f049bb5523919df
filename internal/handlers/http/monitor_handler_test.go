package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"
	"telecare/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeEngine struct {
	resets int
}

func (e *fakeEngine) Start(ctx context.Context) error { return nil }
func (e *fakeEngine) Close() error                    { return nil }
func (e *fakeEngine) State() domain.ConnectionState {
	return domain.ConnectionState{Connected: true, ConnectionPhase: domain.ConnectionConnected}
}
func (e *fakeEngine) Quality() domain.QualityAssessment {
	return domain.QualityAssessment{Overall: domain.QualityGood}
}
func (e *fakeEngine) Roster() []domain.Participant {
	return []domain.Participant{{ID: "alice", DisplayName: "Alice", IsHost: true}}
}
func (e *fakeEngine) Recovery() domain.RecoveryState {
	return domain.RecoveryState{Phase: domain.RecoveryInitial}
}
func (e *fakeEngine) ResetRecovery() { e.resets++ }

func newTestRouter(t *testing.T) (*gin.Engine, *fakeEngine, domain.SessionID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := &fakeEngine{}
	sessions := services.NewSessionService(
		func(ctx context.Context, id domain.SessionID) (ports.SessionEngine, error) {
			return engine, nil
		},
		zaptest.NewLogger(t).Sugar(),
	)
	id, err := sessions.CreateSession(context.Background(), "sess-1")
	require.NoError(t, err)

	router := gin.New()
	NewMonitorHandler(sessions).SetupRoutes(router)
	return router, engine, id
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestListSessions(t *testing.T) {
	router, _, id := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Sessions []string `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{string(id)}, body.Sessions)
}

func TestGetSession(t *testing.T) {
	router, _, id := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+string(id), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SessionID string `json:"session_id"`
		State     struct {
			Connected bool `json:"connected"`
		} `json:"state"`
		Quality struct {
			Overall string `json:"overall"`
		} `json:"quality"`
		Roster []struct {
			ID string `json:"id"`
		} `json:"roster"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(id), body.SessionID)
	assert.True(t, body.State.Connected)
	assert.Equal(t, string(domain.QualityGood), body.Quality.Overall)
	require.Len(t, body.Roster, 1)
	assert.Equal(t, "alice", body.Roster[0].ID)
}

func TestGetSessionNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetRecovery(t *testing.T) {
	router, engine, id := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+string(id)+"/recovery/reset", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, engine.resets)
}

func TestResetRecoveryNotFound(t *testing.T) {
	router, engine, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/ghost/recovery/reset", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, engine.resets)
}
