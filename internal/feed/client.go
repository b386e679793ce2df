// Package feed connects the console to a live device data feed and routes
// recognised messages into the device registry.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m0rjc/DeviceConsole/internal/metrics"
	"github.com/m0rjc/DeviceConsole/internal/types"
)

// ErrAlreadyConnected is returned by Connect while a transport is active.
var ErrAlreadyConnected = errors.New("feed already connected")

// DeviceStore receives decoded feed data. *registry.Registry satisfies it.
type DeviceStore interface {
	SetDevicesData(devices map[int]types.Device, groups []types.Group)
	UpdateDevice(deviceID int, patch types.DevicePatch) bool
	RemoveDevice(deviceID int)
}

// Client owns at most one live transport. Events from a transport that has
// since been disconnected are ignored.
type Client struct {
	newTransport TransportFactory
	store        DeviceStore

	mu        sync.Mutex
	transport Transport
	connected bool

	// dispatchMu serialises message processing.
	dispatchMu sync.Mutex
}

// NewClient creates a client that opens transports built by factory and
// feeds decoded data into store.
func NewClient(factory TransportFactory, store DeviceStore) *Client {
	return &Client{
		newTransport: factory,
		store:        store,
	}
}

// IsConnected reports whether the current transport has opened and not closed.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect opens a new transport. There is no retry: if the channel later
// closes it stays closed until Connect is called again. Connect returns
// ErrAlreadyConnected while the current transport is open or opening.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	t := c.newTransport()
	t.On(EventOpen, func(ev Event) { c.handle(t, ev) })
	t.On(EventMessage, func(ev Event) { c.handle(t, ev) })
	t.On(EventClose, func(ev Event) { c.handle(t, ev) })
	t.On(EventError, func(ev Event) { c.handle(t, ev) })
	c.transport = t
	c.mu.Unlock()

	// Open may emit events synchronously, so it runs without c.mu held.
	if err := t.Open(ctx); err != nil {
		c.mu.Lock()
		if c.transport == t {
			c.transport = nil
			c.connected = false
		}
		c.mu.Unlock()
		_ = t.Close()
		metrics.FeedConnects.WithLabelValues(t.Name(), "error").Inc()
		return fmt.Errorf("opening %s feed: %w", t.Name(), err)
	}
	metrics.FeedConnects.WithLabelValues(t.Name(), "ok").Inc()
	return nil
}

// Disconnect closes the current transport. Calling it when not connected is
// a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.connected = false
	c.mu.Unlock()
	metrics.FeedConnected.Set(0)

	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		slog.Warn("feed.client.close_failed",
			"component", "feed",
			"event", "client.close_error",
			"transport", t.Name(),
			"error", err,
		)
	}
}

func (c *Client) isCurrent(t Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport == t
}

func (c *Client) handle(t Transport, ev Event) {
	if !c.isCurrent(t) {
		if ev.Kind == EventMessage {
			metrics.FeedMessages.WithLabelValues("unknown", "stale").Inc()
		}
		return
	}

	switch ev.Kind {
	case EventOpen:
		c.setConnected(true)
		slog.Info("feed.client.connected",
			"component", "feed",
			"event", "client.connected",
			"transport", t.Name(),
		)
	case EventClose:
		// Release the transport so a later Connect can open a new one.
		c.mu.Lock()
		if c.transport == t {
			c.transport = nil
		}
		c.mu.Unlock()
		c.setConnected(false)
		slog.Info("feed.client.disconnected",
			"component", "feed",
			"event", "client.disconnected",
			"transport", t.Name(),
		)
	case EventError:
		slog.Error("feed.client.transport_error",
			"component", "feed",
			"event", "client.transport_error",
			"transport", t.Name(),
			"error", ev.Err,
		)
	case EventMessage:
		c.dispatchMu.Lock()
		defer c.dispatchMu.Unlock()
		c.HandleMessage(ev.Data)
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
	if v {
		metrics.FeedConnected.Set(1)
	} else {
		metrics.FeedConnected.Set(0)
	}
}

// HandleMessage decodes one raw feed message and applies it. Malformed
// messages are logged and dropped without touching the store; unknown types
// are ignored.
func (c *Client) HandleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.dropMalformed("", err)
		return
	}

	switch env.Type {
	case TypeInitialData:
		var p InitialData
		if err := decodePayload(env.Payload, &p); err != nil {
			c.dropMalformed(env.Type, err)
			return
		}
		devices := make(map[int]types.Device, len(p.Devices))
		for id, d := range p.Devices {
			d.ID = id
			devices[id] = d
		}
		groups := p.Groups
		if groups == nil {
			groups = []types.Group{}
		}
		c.store.SetDevicesData(devices, groups)

	case TypeDeviceUpdate:
		var p DeviceUpdate
		if err := decodePayload(env.Payload, &p); err != nil {
			c.dropMalformed(env.Type, err)
			return
		}
		if !c.store.UpdateDevice(p.ID, p.Fields) {
			slog.Debug("feed.client.update_unknown_device",
				"component", "feed",
				"event", "message.unknown_device",
				"device_id", p.ID,
			)
		}

	case TypeDeviceRemoved:
		var p DeviceRemoved
		if err := decodePayload(env.Payload, &p); err != nil {
			c.dropMalformed(env.Type, err)
			return
		}
		c.store.RemoveDevice(p.ID)

	default:
		metrics.FeedMessages.WithLabelValues("unknown", "ignored").Inc()
		slog.Debug("feed.client.message_ignored",
			"component", "feed",
			"event", "message.ignored",
			"type", env.Type,
		)
		return
	}

	metrics.FeedMessages.WithLabelValues(env.Type, "applied").Inc()
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, v)
}

func (c *Client) dropMalformed(msgType string, err error) {
	metrics.FeedMessages.WithLabelValues(msgType, "malformed").Inc()
	slog.Warn("feed.client.decode_failed",
		"component", "feed",
		"event", "message.decode_error",
		"type", msgType,
		"error", err,
	)
}
