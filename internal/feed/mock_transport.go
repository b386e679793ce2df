package feed

import (
	"context"
	"errors"
	"sync"
)

// ErrTransportClosed is returned when opening a transport that was closed.
var ErrTransportClosed = errors.New("transport closed")

// MockTransport is an in-process transport. Open emits EventOpen followed by
// the initial frames; further frames are pushed with Deliver.
type MockTransport struct {
	*listeners

	initial [][]byte

	mu     sync.Mutex
	open   bool
	closed bool
}

// NewMockTransport creates a transport that replays initial on Open.
func NewMockTransport(initial ...[]byte) *MockTransport {
	return &MockTransport{listeners: newListeners(), initial: initial}
}

func (m *MockTransport) Name() string { return "mock" }

func (m *MockTransport) On(kind EventKind, h Handler) { m.on(kind, h) }

func (m *MockTransport) Open(_ context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	m.open = true
	m.mu.Unlock()

	m.emit(Event{Kind: EventOpen})
	for _, frame := range m.initial {
		m.emit(Event{Kind: EventMessage, Data: frame})
	}
	return nil
}

// Deliver pushes one frame to the message handlers. It is delivered even
// after Close, which lets tests observe late deliveries.
func (m *MockTransport) Deliver(data []byte) {
	m.emit(Event{Kind: EventMessage, Data: data})
}

// Fail emits an error event.
func (m *MockTransport) Fail(err error) {
	m.emit(Event{Kind: EventError, Err: err})
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.open = false
	m.mu.Unlock()

	m.emit(Event{Kind: EventClose})
	return nil
}
