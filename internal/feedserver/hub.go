// Package feedserver serves the device feed over websocket. It is the
// counterpart of feed.WebSocketTransport and backs the mock feed server.
package feedserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/m0rjc/DeviceConsole/internal/db"
	"github.com/m0rjc/DeviceConsole/internal/feed"
	"github.com/m0rjc/DeviceConsole/internal/metrics"
)

const (
	pingInterval   = 30 * time.Second
	pongTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	readLimit      = 4096
	sendBufferSize = 64

	// RelayChannel is the Redis pub/sub channel whose envelopes are
	// forwarded to every connected client.
	RelayChannel = "feed:events"
)

type client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

// Hub tracks connected feed clients. New clients receive the current
// INITIAL_DATA before any other message.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	initial feed.InitialData

	redis *db.RedisClient

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewHub creates a hub. redis may be nil, in which case Publish delivers
// locally and Run only waits for shutdown.
func NewHub(initial feed.InitialData, redis *db.RedisClient) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		initial: initial,
		redis:   redis,
		closeCh: make(chan struct{}),
	}
}

// SetInitialData replaces the data sent to clients that connect later.
func (h *Hub) SetInitialData(data feed.InitialData) {
	h.mu.Lock()
	h.initial = data
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds c and queues the initial data as its first frame.
func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env, err := feed.InitialDataMessage(h.initial)
	if err != nil {
		return fmt.Errorf("encoding initial data: %w", err)
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding initial data: %w", err)
	}
	c.send <- frame
	h.clients[c] = struct{}{}
	metrics.FeedServerClients.Set(float64(len(h.clients)))
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.FeedServerClients.Set(float64(len(h.clients)))
}

// Broadcast sends env to every locally connected client.
func (h *Hub) Broadcast(env feed.Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", env.Type, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		// A slow client must not stall the others.
		select {
		case c.send <- frame:
		default:
			slog.Warn("feedserver.hub.send_buffer_full",
				"component", "feedserver",
				"event", "hub.drop_message",
				"type", env.Type,
				"remote_addr", c.conn.RemoteAddr().String(),
			)
		}
	}
	return nil
}

// Publish distributes env to clients of every hub sharing the Redis
// instance, or only to local clients without Redis.
func (h *Hub) Publish(ctx context.Context, env feed.Envelope) error {
	if h.redis == nil {
		return h.Broadcast(env)
	}
	if err := h.redis.Publish(ctx, RelayChannel, env); err != nil {
		return fmt.Errorf("publishing %s: %w", env.Type, err)
	}
	return nil
}

// Run relays envelopes from the Redis channel until ctx is cancelled or
// Close is called. Connected clients are closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	if h.redis == nil {
		select {
		case <-ctx.Done():
		case <-h.closeCh:
		}
		return
	}

	pubSub := h.redis.Subscribe(ctx, RelayChannel)
	defer pubSub.Close()
	msgs := pubSub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.closeCh:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var env feed.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || !knownType(env.Type) {
				slog.Warn("feedserver.hub.bad_relay_payload",
					"component", "feedserver",
					"event", "hub.decode_error",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			if env.Type == feed.TypeInitialData {
				var data feed.InitialData
				if err := json.Unmarshal(env.Payload, &data); err == nil {
					h.SetInitialData(data)
				}
			}
			if err := h.Broadcast(env); err != nil {
				slog.Error("feedserver.hub.broadcast_failed",
					"component", "feedserver",
					"event", "hub.broadcast_error",
					"error", err,
				)
			}
		}
	}
}

func knownType(t string) bool {
	switch t {
	case feed.TypeInitialData, feed.TypeDeviceUpdate, feed.TypeDeviceRemoved:
		return true
	}
	return false
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.FeedServerClients.Set(0)
}

// Close stops Run. Safe to call multiple times.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.closeCh) })
}

// writePump writes queued frames and keeps the connection alive with pings.
func (c *client) writePump() {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pingTicker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, "")) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, frame); err != nil {
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and returns when the connection closes.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseAbnormalClosure, ws.CloseNormalClosure) {
				slog.Warn("feedserver.client.unexpected_close",
					"component", "feedserver",
					"event", "client.read_error",
					"error", err,
				)
			}
			return
		}
	}
}
