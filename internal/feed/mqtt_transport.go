package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttSubscribeTimeout  = 5 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
	mqttQoS               = 1
)

// ErrMQTTTimeout is returned when the broker does not answer in time.
var ErrMQTTTimeout = errors.New("mqtt operation timed out")

// MQTTConfig describes the broker and topic an MQTTTransport reads from.
type MQTTConfig struct {
	BrokerURL string // e.g. tcp://localhost:1883
	Topic     string
	ClientID  string
	Username  string
	Password  string
}

// MQTTTransport reads feed frames published to an MQTT topic. Automatic
// reconnection is disabled: a lost connection emits EventClose.
type MQTTTransport struct {
	*listeners

	cfg MQTTConfig

	mu        sync.Mutex
	client    pahomqtt.Client
	closing   bool
	closeOnce sync.Once
}

// NewMQTTTransport creates a transport for cfg.
func NewMQTTTransport(cfg MQTTConfig) *MQTTTransport {
	return &MQTTTransport{listeners: newListeners(), cfg: cfg}
}

func (t *MQTTTransport) Name() string { return "mqtt" }

func (t *MQTTTransport) On(kind EventKind, h Handler) { t.on(kind, h) }

func (t *MQTTTransport) clientOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(t.cfg.BrokerURL).
		SetClientID(t.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(mqttConnectTimeout).
		SetOrderMatters(true)
	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.emit(Event{Kind: EventError, Err: err})
		t.emit(Event{Kind: EventClose})
	})
	return opts
}

// Open connects to the broker, emits EventOpen and subscribes to the topic.
func (t *MQTTTransport) Open(ctx context.Context) error {
	client := pahomqtt.NewClient(t.clientOptions())
	if err := waitToken(ctx, client.Connect(), mqttConnectTimeout); err != nil {
		return fmt.Errorf("connecting to %s: %w", t.cfg.BrokerURL, err)
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		client.Disconnect(mqttDisconnectQuiesce)
		return ErrTransportClosed
	}
	t.client = client
	t.mu.Unlock()

	t.emit(Event{Kind: EventOpen})

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.emit(Event{Kind: EventMessage, Data: msg.Payload()})
	}
	if err := waitToken(ctx, client.Subscribe(t.cfg.Topic, mqttQoS, handler), mqttSubscribeTimeout); err != nil {
		return fmt.Errorf("subscribing to %s: %w", t.cfg.Topic, err)
	}
	return nil
}

func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return ErrMQTTTimeout
	}
}

// Close disconnects from the broker and emits EventClose.
func (t *MQTTTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closing = true
		client := t.client
		t.mu.Unlock()
		if client == nil {
			return
		}
		client.Disconnect(mqttDisconnectQuiesce)
		t.emit(Event{Kind: EventClose})
	})
	return nil
}
