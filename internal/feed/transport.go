package feed

import (
	"context"
	"sync"
)

// EventKind is one of the fixed set of transport events.
type EventKind string

const (
	EventOpen    EventKind = "open"
	EventMessage EventKind = "message"
	EventClose   EventKind = "close"
	EventError   EventKind = "error"
)

// Event is delivered to handlers registered with Transport.On.
type Event struct {
	Kind EventKind
	Data []byte // set for EventMessage
	Err  error  // set for EventError
}

// Handler receives transport events.
type Handler func(Event)

// Transport is a one-shot push channel. Implementations deliver events from a
// single goroutine so handlers observe them in arrival order.
type Transport interface {
	// Name identifies the transport kind in logs and metrics.
	Name() string
	// On registers h for kind. Unknown kinds are ignored.
	On(kind EventKind, h Handler)
	// Open establishes the channel and emits EventOpen once it is usable.
	Open(ctx context.Context) error
	// Close tears the channel down. Safe to call more than once.
	Close() error
}

// TransportFactory builds a fresh Transport for each Connect call.
type TransportFactory func() Transport

// listeners is the handler table shared by the transport implementations.
type listeners struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
}

func newListeners() *listeners {
	return &listeners{handlers: map[EventKind][]Handler{
		EventOpen:    nil,
		EventMessage: nil,
		EventClose:   nil,
		EventError:   nil,
	}}
}

func (l *listeners) on(kind EventKind, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.handlers[kind]; !ok {
		return
	}
	l.handlers[kind] = append(l.handlers[kind], h)
}

func (l *listeners) emit(ev Event) {
	l.mu.RLock()
	hs := append([]Handler(nil), l.handlers[ev.Kind]...)
	l.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}
