package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m0rjc/DeviceConsole/internal/appstate"
	"github.com/m0rjc/DeviceConsole/internal/config"
	"github.com/m0rjc/DeviceConsole/internal/console"
	"github.com/m0rjc/DeviceConsole/internal/handlers"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
	"github.com/m0rjc/DeviceConsole/internal/registry"
	"github.com/stretchr/testify/assert"
)

func testDeps() *handlers.Dependencies {
	return &handlers.Dependencies{
		Console: console.New(registry.New(), appstate.New(), mapview.NewSynchronizer()),
	}
}

func TestNewHandler_AppliesSecurityHeaders(t *testing.T) {
	h := NewHandler(testDeps())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestNewHandler_UnknownRoute(t *testing.T) {
	h := NewHandler(testDeps())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServers_Addresses(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, MetricsPort: 9091}}

	assert.Equal(t, "127.0.0.1:8080", NewServer(cfg, testDeps()).Addr)

	metricsSrv := NewMetricsServer(cfg, testDeps())
	assert.Equal(t, ":9091", metricsSrv.Addr)

	rec := httptest.NewRecorder()
	metricsSrv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console_feed_connected")
}
