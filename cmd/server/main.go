package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m0rjc/DeviceConsole/internal/appstate"
	"github.com/m0rjc/DeviceConsole/internal/config"
	"github.com/m0rjc/DeviceConsole/internal/console"
	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/handlers"
	"github.com/m0rjc/DeviceConsole/internal/logging"
	"github.com/m0rjc/DeviceConsole/internal/mapview"
	"github.com/m0rjc/DeviceConsole/internal/persist"
	"github.com/m0rjc/DeviceConsole/internal/registry"
	"github.com/m0rjc/DeviceConsole/internal/server"
)

func main() {
	// Initialize structured logging
	logging.InitLogger()

	slog.Info("starting device console")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded successfully",
		"feed_transport", cfg.Feed.Transport,
		"storage_backend", cfg.Storage.Backend,
	)

	store, conns, err := persist.Open(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer conns.Close()

	// State owners. The map surface lives in-process and is served by the API.
	reg := registry.New()
	state := appstate.New()
	mapSync := mapview.NewSynchronizer()
	surface := mapview.NewMemorySurface()
	mapSync.SetSurface(surface)
	mapSync.SetObjectManager(surface)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var checkpointer *persist.Checkpointer
	if store != nil {
		checkpointer = persist.NewCheckpointer(store, cfg.Persist.Debounce, reg, state, mapSync)
		checkpointer.Restore(ctx)
		reg.SetOnChange(checkpointer.Hook(reg))
		state.SetOnChange(checkpointer.Hook(state))
		mapSync.SetOnChange(checkpointer.Hook(mapSync))
		checkpointer.Start(ctx)
	}

	c := console.New(reg, state, mapSync)
	c.SyncMap()

	feedClient := feed.NewClient(transportFactory(cfg.Feed), c)
	if err := feedClient.Connect(ctx); err != nil {
		// The API stays up; POST /api/v1/feed/connect retries.
		slog.Error("failed to connect feed", "error", err, "url", cfg.Feed.URL)
	}

	deps := &handlers.Dependencies{
		Console: c,
		Feed:    feedClient,
		Surface: surface,
		Conns:   conns,
	}

	srv := server.NewServer(cfg, deps)
	metricsSrv := server.NewMetricsServer(cfg, deps)

	go func() {
		slog.Info("metrics server listening", "address", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		slog.Info("server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("received shutdown signal, shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("main server shutdown error: %w", err)
		} else {
			errChan <- nil
		}
	}()
	go func() {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errChan <- fmt.Errorf("metrics server shutdown error: %w", err)
		} else {
			errChan <- nil
		}
	}()

	exitCode := 0
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil {
			slog.Error("server forced to shutdown", "error", err)
			exitCode = 1
		}
	}

	feedClient.Disconnect()
	stop()

	if checkpointer != nil {
		if err := checkpointer.Stop(shutdownCtx); err != nil {
			slog.Error("final state flush failed", "error", err)
			exitCode = 1
		}
	}

	slog.Info("servers exited", "exit_code", exitCode)
	if exitCode != 0 {
		conns.Close()
		os.Exit(exitCode)
	}
}

func transportFactory(cfg config.FeedConfig) feed.TransportFactory {
	if cfg.Transport == config.TransportMQTT {
		return func() feed.Transport {
			return feed.NewMQTTTransport(feed.MQTTConfig{
				BrokerURL: cfg.URL,
				Topic:     cfg.MQTTTopic,
				ClientID:  cfg.MQTTClientID,
				Username:  cfg.MQTTUsername,
				Password:  cfg.MQTTPassword,
			})
		}
	}
	return func() feed.Transport {
		return feed.NewWebSocketTransport(cfg.URL, nil)
	}
}
