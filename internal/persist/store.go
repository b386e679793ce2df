// Package persist saves and restores console state owners to a blob store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m0rjc/DeviceConsole/internal/db"
	"github.com/m0rjc/DeviceConsole/internal/db/snapshot"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every persisted owner.
const KeyPrefix = "camera_manager_"

// ErrNotFound is returned by BlobStore.Get when no value is stored.
var ErrNotFound = errors.New("snapshot not found")

// Key returns the storage key for an owner id.
func Key(ownerID string) string {
	return KeyPrefix + ownerID
}

// BlobStore is a flat key/value store for serialised owner state.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys beginning with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// RedisStore keeps snapshots as plain Redis strings.
type RedisStore struct {
	client *db.RedisClient
}

func NewRedisStore(client *db.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.client.Keys(ctx, prefix+"*")
}

// GormStore keeps snapshots in the console_snapshots table.
type GormStore struct {
	conns *db.Connections
}

func NewGormStore(conns *db.Connections) *GormStore {
	return &GormStore{conns: conns}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	record, err := snapshot.Get(s.conns.WithContext(ctx), key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record.Data, nil
}

func (s *GormStore) Set(ctx context.Context, key string, data []byte) error {
	if err := snapshot.Upsert(s.conns.WithContext(ctx), key, data); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return snapshot.Delete(s.conns.WithContext(ctx), key)
}

func (s *GormStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := snapshot.ListKeys(s.conns.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// DeleteAll removes every owner snapshot from store and returns the removed keys.
func DeleteAll(ctx context.Context, store BlobStore) ([]string, error) {
	keys, err := store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			return nil, fmt.Errorf("delete snapshot %s: %w", k, err)
		}
	}
	return keys, nil
}
