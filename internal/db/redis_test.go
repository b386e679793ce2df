package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisClientFromClient(client, "test:"), mr
}

func TestRedisClient_PrefixesKeys(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "camera_manager_app", "{}", 0).Err())
	assert.True(t, mr.Exists("test:camera_manager_app"))

	val, err := rc.Get(ctx, "camera_manager_app").Result()
	require.NoError(t, err)
	assert.Equal(t, "{}", val)

	keys, err := rc.Keys(ctx, "camera_manager_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"camera_manager_app"}, keys)

	require.NoError(t, rc.Del(ctx, "camera_manager_app").Err())
	assert.False(t, mr.Exists("test:camera_manager_app"))
}

func TestRedisClient_PubSubStripsPrefix(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	ps := rc.Subscribe(ctx, "feed:events")
	defer ps.Close()
	ch := ps.Channel()

	// Wait for the subscription to be active before publishing.
	require.Eventually(t, func() bool {
		n, err := rc.Client().PubSubNumSub(ctx, "test:feed:events").Result()
		return err == nil && n["test:feed:events"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, rc.Publish(ctx, "feed:events", map[string]string{"type": "PING"}))

	select {
	case msg := <-ch:
		assert.Equal(t, "feed:events", msg.Channel)
		assert.JSONEq(t, `{"type":"PING"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
