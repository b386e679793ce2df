// Command snapshot-reset deletes persisted console state so the next start
// begins empty.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/m0rjc/DeviceConsole/internal/config"
	"github.com/m0rjc/DeviceConsole/internal/logging"
	"github.com/m0rjc/DeviceConsole/internal/persist"
)

func main() {
	logging.InitLogger()

	owner := flag.String("owner", "", "Only reset this owner (devices, app or map); default resets all")
	dryRun := flag.Bool("dry-run", false, "List snapshots without deleting them")
	flag.Parse()

	// Load minimal configuration (storage only)
	cfg, err := config.LoadMinimal()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, conns, err := persist.Open(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer conns.Close()

	if store == nil {
		slog.Info("storage backend is none; nothing to reset")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *owner == "" && !*dryRun {
		removed, err := persist.DeleteAll(ctx, store)
		if err != nil {
			slog.Error("failed to reset snapshots", "error", err)
			conns.Close()
			os.Exit(1)
		}
		slog.Info("snapshot reset completed successfully",
			"backend", cfg.Storage.Backend,
			"deleted", removed,
		)
		return
	}

	prefix := persist.KeyPrefix
	if *owner != "" {
		prefix = persist.Key(*owner)
	}
	keys, err := store.Keys(ctx, prefix)
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		conns.Close()
		os.Exit(1)
	}

	exitCode := 0
	for _, key := range keys {
		if *owner != "" && key != prefix {
			continue
		}
		if *dryRun {
			slog.Info("would delete snapshot", "key", key)
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			slog.Error("failed to delete snapshot", "key", key, "error", err)
			exitCode = 1
			continue
		}
		slog.Info("deleted snapshot", "key", key)
	}

	if exitCode != 0 {
		slog.Error("snapshot reset completed with errors")
		conns.Close()
		os.Exit(exitCode)
	}
	slog.Info("snapshot reset completed successfully", "backend", cfg.Storage.Backend)
}
