package persist

import (
	"fmt"
	"log/slog"

	"github.com/m0rjc/DeviceConsole/internal/config"
	"github.com/m0rjc/DeviceConsole/internal/db"
	"gorm.io/gorm"
)

// Open connects the configured storage backend. For the "none" backend it
// returns a nil store and empty connections.
func Open(cfg *config.Config) (BlobStore, *db.Connections, error) {
	switch cfg.Storage.Backend {
	case config.StorageNone:
		return nil, db.NewConnections(nil, nil), nil

	case config.StorageRedis:
		client, err := db.NewRedisClient(cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		slog.Info("persist.open.redis",
			"component", "persist",
			"event", "store.opened",
			"backend", cfg.Storage.Backend,
			"key_prefix", cfg.Redis.KeyPrefix,
		)
		return NewRedisStore(client), db.NewConnections(nil, client), nil

	case config.StoragePostgres, config.StorageSQLite:
		var (
			conn *gorm.DB
			err  error
		)
		if cfg.Storage.Backend == config.StoragePostgres {
			conn, err = db.NewPostgresConnection(cfg.Database.URL)
		} else {
			conn, err = db.NewSQLiteConnection(cfg.Database.SQLitePath)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to %s: %w", cfg.Storage.Backend, err)
		}
		slog.Info("persist.open.sql",
			"component", "persist",
			"event", "store.opened",
			"backend", cfg.Storage.Backend,
		)
		conns := db.NewConnections(conn, nil)
		return NewGormStore(conns), conns, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
