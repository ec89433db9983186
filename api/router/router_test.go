package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netshellpro/netshellpro/api/handler"
	"github.com/netshellpro/netshellpro/internal/metrics"
	"github.com/netshellpro/netshellpro/internal/service"
	"github.com/netshellpro/netshellpro/pkg/ssh"
)

type refusingDialer struct{}

func (refusingDialer) Dial(_ context.Context, info *ssh.ConnectionInfo) (ssh.Shell, error) {
	return nil, &ssh.ConnectError{Host: info.Host, Port: info.Port, Err: errors.New("connection refused")}
}

func newTestRouter(m *metrics.Metrics) http.Handler {
	pool := ssh.NewPool(nil, refusingDialer{})
	orch := service.NewOrchestrator(pool, service.OrchestratorConfig{Metrics: m})
	pipeline := service.NewPipeline(service.NewRunner(orch, 1), orch, service.PipelineConfig{})
	return SetupRouter(Deps{
		Engine:  handler.NewEngineHandler(pipeline, orch, nil, nil),
		Metrics: m,
		Mode:    "test",
	})
}

func TestRoutes(t *testing.T) {
	m := metrics.New()
	r := newTestRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "自动生成请求ID")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/suggestions", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/execute", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRoutesWithoutMetrics(t *testing.T) {
	r := newTestRouter(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
