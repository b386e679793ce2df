package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps go-redis, applying a key prefix to every key and
// pub/sub channel so several consoles can share one Redis.
type RedisClient struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisClient(redisURL string, keyPrefix string) (*RedisClient, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

// NewRedisClientFromClient wraps an existing client without pinging it.
func NewRedisClientFromClient(client *redis.Client, keyPrefix string) *RedisClient {
	return &RedisClient{client: client, keyPrefix: keyPrefix}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// prefixKey adds the configured prefix to a key
func (r *RedisClient) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// Get retrieves a value from Redis with the configured key prefix
func (r *RedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	return r.client.Get(ctx, r.prefixKey(key))
}

// Set stores a value in Redis with the configured key prefix
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return r.client.Set(ctx, r.prefixKey(key), value, expiration)
}

// Keys lists keys matching pattern, with the configured prefix applied to the
// pattern and stripped from the results.
func (r *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, r.prefixKey(pattern), 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Del deletes a key from Redis with the configured key prefix
func (r *RedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		prefixedKeys[i] = r.prefixKey(key)
	}
	return r.client.Del(ctx, prefixedKeys...)
}

// Publish publishes a message to a Redis pub/sub channel.
// Channel names are prefixed the same as keys so that Redis ACL rules apply consistently.
func (r *RedisClient) Publish(ctx context.Context, channel string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return r.client.Publish(ctx, r.prefixKey(channel), data).Err()
}

// Subscribe returns a PubSub handle for the given channels.
// Channel names are prefixed the same as keys so that Redis ACL rules apply consistently.
// The returned PubSub transparently strips the prefix from received message channel names.
func (r *RedisClient) Subscribe(ctx context.Context, channels ...string) *PubSub {
	prefixed := make([]string, len(channels))
	for i, ch := range channels {
		prefixed[i] = r.prefixKey(ch)
	}
	return &PubSub{
		inner:     r.client.Subscribe(ctx, prefixed...),
		keyPrefix: r.keyPrefix,
	}
}

// PubSub wraps *redis.PubSub. Incoming message channel names have the key
// prefix stripped so callers work with unprefixed names.
type PubSub struct {
	inner     *redis.PubSub
	keyPrefix string
	once      sync.Once
	ch        chan *redis.Message
}

// Channel returns a channel that receives messages with the key prefix stripped
// from the Channel field.
func (p *PubSub) Channel() <-chan *redis.Message {
	p.once.Do(func() {
		p.ch = make(chan *redis.Message, 100)
		innerCh := p.inner.Channel()
		go func() {
			for msg := range innerCh {
				stripped := *msg
				stripped.Channel = strings.TrimPrefix(stripped.Channel, p.keyPrefix)
				p.ch <- &stripped
			}
			close(p.ch)
		}()
	})
	return p.ch
}

// Close closes the subscription.
func (p *PubSub) Close() error {
	return p.inner.Close()
}
