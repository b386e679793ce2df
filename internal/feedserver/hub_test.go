package feedserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ws "github.com/gorilla/websocket"
	"github.com/m0rjc/DeviceConsole/internal/db"
	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/registry"
	"github.com/m0rjc/DeviceConsole/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() feed.InitialData {
	return feed.InitialData{
		Devices: map[int]types.Device{
			1: {ID: 1, Name: "Gate", Channels: 2, Lat: 55.7, Lon: 37.5},
			2: {ID: 2, Name: "Dock", Channels: 4, Lat: 55.8, Lon: 37.7},
		},
		Groups: []types.Group{{ID: 5, Name: "Site", DeviceIDs: []int{1}}},
	}
}

func startServer(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return strings.Replace(srv.URL, "http://", "ws://", 1)
}

func dial(t *testing.T, url string) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *ws.Conn) feed.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env feed.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_SendsInitialDataOnConnect(t *testing.T) {
	hub := NewHub(sampleData(), nil)
	t.Cleanup(hub.Close)
	conn := dial(t, startServer(t, hub))

	env := readEnvelope(t, conn)
	assert.Equal(t, feed.TypeInitialData, env.Type)

	var data feed.InitialData
	require.NoError(t, json.Unmarshal(env.Payload, &data))
	assert.Equal(t, "Dock", data.Devices[2].Name)
	assert.Equal(t, []int{1}, data.Groups[0].DeviceIDs)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub := NewHub(sampleData(), nil)
	t.Cleanup(hub.Close)
	url := startServer(t, hub)

	a := dial(t, url)
	b := dial(t, url)
	readEnvelope(t, a)
	readEnvelope(t, b)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	env, err := feed.DeviceRemovedMessage(2)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), env))

	for _, conn := range []*ws.Conn{a, b} {
		got := readEnvelope(t, conn)
		assert.Equal(t, feed.TypeDeviceRemoved, got.Type)
		assert.JSONEq(t, `{"id":2}`, string(got.Payload))
	}

	a.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RelaysRedisEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	client := db.NewRedisClientFromClient(rc, "mock:")

	hub := NewHub(sampleData(), client)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	require.Eventually(t, func() bool {
		n, err := rc.PubSubNumSub(ctx, "mock:"+RelayChannel).Result()
		return err == nil && n["mock:"+RelayChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, startServer(t, hub))
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// Junk on the channel is dropped.
	require.NoError(t, rc.Publish(ctx, "mock:"+RelayChannel, "not json").Err())

	alarm := true
	env, err := feed.DeviceUpdateMessage(1, types.DevicePatch{Alarm: &alarm})
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, env))

	got := readEnvelope(t, conn)
	assert.Equal(t, feed.TypeDeviceUpdate, got.Type)
	assert.JSONEq(t, `{"id":1,"fields":{"alarm":true}}`, string(got.Payload))
}

func TestHub_FeedsConsoleClient(t *testing.T) {
	hub := NewHub(sampleData(), nil)
	t.Cleanup(hub.Close)
	url := startServer(t, hub)

	reg := registry.New()
	c := feed.NewClient(func() feed.Transport { return feed.NewWebSocketTransport(url, nil) }, reg)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Disconnect)

	require.Eventually(t, func() bool { return len(reg.Devices()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{2}, reg.UngroupedDeviceIDs())

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	env, err := feed.DeviceRemovedMessage(1)
	require.NoError(t, err)
	require.NoError(t, hub.Broadcast(env))

	require.Eventually(t, func() bool {
		_, ok := reg.Device(1)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := NewHub(sampleData(), nil)
	done := make(chan struct{})
	go func() {
		hub.Run(context.Background())
		close(done)
	}()

	conn := dial(t, startServer(t, hub))
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	hub.Close()
	<-done

	assert.Equal(t, 0, hub.ClientCount())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal close, got %v", err)
}
