package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/orchestrator/research"
)

func newTestServer(t *testing.T) (*gin.Engine, *research.Workflow) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	wf := research.New(nil, nil)
	engine := gin.New()
	NewServer(wf).Register(engine)
	return engine, wf
}

func TestStartResearchReturnsTaskID(t *testing.T) {
	engine, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/research/start", strings.NewReader(`{"topic":"gravitational lensing"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["task_id"])
	require.Equal(t, "started", body["status"])
}

func TestGetTaskUnknownReturns404(t *testing.T) {
	engine, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/research/does-not-exist", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasksReflectsStartedTasks(t *testing.T) {
	engine, wf := newTestServer(t)
	wf.StartResearch(context.Background(), "listed topic", nil)

	req := httptest.NewRequest(http.MethodGet, "/research", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []research.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	require.Equal(t, "listed topic", summaries[0].Topic)
}

func TestStreamDeepResearchEmitsSSEUntilTerminal(t *testing.T) {
	engine, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/research/deep/stream", strings.NewReader(`{"query":"streamed topic"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		engine.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not terminate in time")
	}

	require.Contains(t, rec.Body.String(), "data: ")
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}
