package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for persisted console state.
const (
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageNone     = "none"
)

// Feed transports.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

type Config struct {
	Server   ServerConfig
	Feed     FeedConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Persist  PersistConfig
}

type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
}

type FeedConfig struct {
	Transport string
	// URL is a ws:// endpoint or, for MQTT, the broker URL.
	URL          string
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
}

type StorageConfig struct {
	Backend string
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
}

type DatabaseConfig struct {
	URL        string
	SQLitePath string
}

type PersistConfig struct {
	Debounce time.Duration
}

// Load reads the full configuration from the environment.
func Load() (*Config, error) {
	storage, redisCfg, dbCfg, err := loadStorage()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("PORT", 8080),
			Host:        getEnv("HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
		},
		Feed: FeedConfig{
			Transport:    strings.ToLower(getEnv("FEED_TRANSPORT", TransportWebSocket)),
			URL:          getEnv("FEED_URL", "ws://localhost:8081/ws"),
			MQTTTopic:    getEnv("FEED_MQTT_TOPIC", "console/feed"),
			MQTTClientID: getEnv("FEED_MQTT_CLIENT_ID", "device-console"),
			MQTTUsername: getEnv("FEED_MQTT_USERNAME", ""),
			MQTTPassword: getEnv("FEED_MQTT_PASSWORD", ""),
		},
		Storage:  storage,
		Redis:    redisCfg,
		Database: dbCfg,
		Persist: PersistConfig{
			Debounce: getEnvAsDuration("PERSIST_DEBOUNCE", 500*time.Millisecond),
		},
	}

	switch cfg.Feed.Transport {
	case TransportWebSocket, TransportMQTT:
	default:
		return nil, fmt.Errorf("FEED_TRANSPORT must be %q or %q, got %q", TransportWebSocket, TransportMQTT, cfg.Feed.Transport)
	}
	if cfg.Feed.URL == "" {
		return nil, fmt.Errorf("FEED_URL is required")
	}
	if cfg.Server.Port == cfg.Server.MetricsPort {
		return nil, fmt.Errorf("PORT and METRICS_PORT must differ")
	}

	return cfg, nil
}

// LoadMinimal reads only the storage settings. Used by maintenance tools.
func LoadMinimal() (*Config, error) {
	storage, redisCfg, dbCfg, err := loadStorage()
	if err != nil {
		return nil, err
	}
	return &Config{Storage: storage, Redis: redisCfg, Database: dbCfg}, nil
}

func loadStorage() (StorageConfig, RedisConfig, DatabaseConfig, error) {
	storage := StorageConfig{Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageRedis))}
	redisCfg := RedisConfig{
		URL:       getEnv("REDIS_URL", "redis://localhost:6379"),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", ""),
	}
	dbCfg := DatabaseConfig{
		URL:        getEnv("DATABASE_URL", ""),
		SQLitePath: getEnv("SQLITE_PATH", "console.db"),
	}

	switch storage.Backend {
	case StorageRedis, StorageSQLite, StorageNone:
	case StoragePostgres:
		if dbCfg.URL == "" {
			return storage, redisCfg, dbCfg, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return storage, redisCfg, dbCfg, fmt.Errorf("unknown STORAGE_BACKEND %q", storage.Backend)
	}
	return storage, redisCfg, dbCfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("750ms") or whole milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
