package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/m0rjc/DeviceConsole/internal/db"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyHandler(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	conns := db.SetupTestDB(t)
	conns.Redis = db.NewRedisClientFromClient(client, "")

	deps := &Dependencies{Feed: &fakeFeed{connected: true}, Conns: conns}
	rec := httptest.NewRecorder()
	ReadyHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","database":"ok","redis":"ok","feed":"ok"}`, rec.Body.String())

	mr.Close()
	deps.Feed = &fakeFeed{connected: false}
	rec = httptest.NewRecorder()
	ReadyHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not ready","database":"ok","redis":"error","feed":"disconnected"}`, rec.Body.String())
}

func TestReadyHandler_NoStorage(t *testing.T) {
	deps := &Dependencies{Feed: &fakeFeed{connected: true}}
	rec := httptest.NewRecorder()
	ReadyHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","database":"disabled","redis":"disabled","feed":"ok"}`, rec.Body.String())
}
