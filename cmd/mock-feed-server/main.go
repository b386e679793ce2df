// Command mock-feed-server serves a device feed for local development. Each
// console that connects receives INITIAL_DATA from a YAML fixture; envelopes
// published to the Redis channel feed:events are relayed to every console.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m0rjc/DeviceConsole/internal/db"
	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/feedserver"
	"github.com/m0rjc/DeviceConsole/internal/logging"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

const (
	defaultPort    = "8081"
	defaultFixture = "cmd/mock-feed-server/fixture.yaml"
)

// Config holds server configuration from environment variables.
type Config struct {
	Port           string
	FixturePath    string
	RedisURL       string
	RedisKeyPrefix string
}

func loadConfig() Config {
	return Config{
		Port:           envOrDefault("PORT", defaultPort),
		FixturePath:    envOrDefault("MOCK_FEED_FIXTURE", defaultFixture),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisKeyPrefix: os.Getenv("REDIS_KEY_PREFIX"),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logging.InitLogger()
	cfg := loadConfig()

	data, err := feedserver.LoadFixture(cfg.FixturePath)
	if err != nil {
		slog.Warn("mock-feed-server.fixture_unavailable",
			"component", "mock-feed-server",
			"event", "fixture.load_error",
			"path", cfg.FixturePath,
			"error", err,
		)
		data = feed.InitialData{Devices: map[int]types.Device{}, Groups: []types.Group{}}
	}

	// Without Redis the server only sends the fixture.
	var redisClient *db.RedisClient
	if cfg.RedisURL != "" {
		redisClient, err = db.NewRedisClient(cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	hub := feedserver.NewHub(data, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("mock feed server listening",
			"address", srv.Addr,
			"devices", len(data.Devices),
			"groups", len(data.Groups),
			"redis_relay", redisClient != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}
