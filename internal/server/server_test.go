package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/amoylab/grimrelay/internal/protocol"
	"github.com/amoylab/grimrelay/internal/relay"
	"github.com/amoylab/grimrelay/internal/session"
	"github.com/amoylab/grimrelay/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, withMetrics bool) (*Server, *relay.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.RelayConfig{}
	cfg.Metrics.Enabled = withMetrics
	cfg.SetDefaults()

	store := session.NewMemoryStore(zap.NewNop())
	if !withMetrics {
		hub := relay.NewHub(zap.NewNop(), store)
		return NewServer(zap.NewNop(), cfg, hub, nil), hub
	}
	m := metrics.New(cfg.Metrics)
	hub := relay.NewHub(zap.NewNop(), store, relay.WithObserver(m))
	return NewServer(zap.NewNop(), cfg, hub, m), hub
}

func get(s *Server, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, hub := newTestServer(t, false)
	_, err := hub.Lifecycle().CreateSession(context.Background(), "none", "ABC123", "h1", protocol.Descriptor{IsPublic: true, HostName: "Gandalf"})
	require.NoError(t, err)

	w := get(s, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := gjson.Parse(w.Body.String())
	assert.Equal(t, "healthy", body.Get("status").String())
	assert.Equal(t, int64(1), body.Get("activeSessions").Int())
	assert.Equal(t, int64(0), body.Get("activeClients").Int())
	assert.True(t, body.Get("timestamp").Exists())
}

func TestSessionsDirectory(t *testing.T) {
	s, hub := newTestServer(t, false)

	w := get(s, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())

	ctx := context.Background()
	_, err := hub.Lifecycle().CreateSession(ctx, "none", "PUB001", "h1", protocol.Descriptor{Name: "Open Table", IsPublic: true, HostName: "Gandalf"})
	require.NoError(t, err)
	_, err = hub.Lifecycle().CreateSession(ctx, "none", "PRV001", "h2", protocol.Descriptor{Name: "Secret", HostName: "Saruman"})
	require.NoError(t, err)

	w = get(s, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := gjson.Parse(w.Body.String())
	require.Equal(t, int64(1), body.Get("sessions.#").Int())
	assert.Equal(t, "PUB001", body.Get("sessions.0.id").String())
	assert.Equal(t, "Open Table", body.Get("sessions.0.campaignName").String())
	assert.Equal(t, "Gandalf", body.Get("sessions.0.dmName").String())
	assert.Equal(t, int64(8), body.Get("sessions.0.maxPlayers").Int())
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, false)

	w := get(s, "/api/health", http.Header{"Origin": []string{"http://table.example"}})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://table.example")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, true)
	_ = get(s, "/api/health", nil)

	w := get(s, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grimrelay_http_requests_total")

	s, _ = newTestServer(t, false)
	w = get(s, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecovery(t *testing.T) {
	s, _ := newTestServer(t, false)
	s.router.GET("/boom", func(*gin.Context) { panic("boom") })

	w := get(s, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestShutdownWithoutStart(t *testing.T) {
	s, _ := newTestServer(t, false)
	assert.NoError(t, s.Shutdown(context.Background()))
}
