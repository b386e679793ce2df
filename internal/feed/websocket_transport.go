package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	// readLimit bounds a single frame; INITIAL_DATA carries the whole fleet.
	readLimit = 8 << 20
)

// WebSocketTransport reads feed frames from a websocket server.
type WebSocketTransport struct {
	*listeners

	url    string
	header http.Header
	dialer *ws.Dialer

	mu        sync.Mutex
	conn      *ws.Conn
	closing   bool
	closeOnce sync.Once
}

// NewWebSocketTransport creates a transport for the given ws:// or wss:// URL.
func NewWebSocketTransport(url string, header http.Header) *WebSocketTransport {
	return &WebSocketTransport{
		listeners: newListeners(),
		url:       url,
		header:    header,
		dialer: &ws.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

func (t *WebSocketTransport) On(kind EventKind, h Handler) { t.on(kind, h) }

// Open dials the server, emits EventOpen and starts the read loop.
func (t *WebSocketTransport) Open(ctx context.Context) error {
	conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing %s: %w (status %s)", t.url, err, resp.Status)
		}
		return fmt.Errorf("dialing %s: %w", t.url, err)
	}
	conn.SetReadLimit(readLimit)

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		conn.Close()
		return ErrTransportClosed
	}
	t.conn = conn
	t.mu.Unlock()

	t.emit(Event{Kind: EventOpen})
	go t.readLoop(conn)
	return nil
}

func (t *WebSocketTransport) readLoop(conn *ws.Conn) {
	defer t.emit(Event{Kind: EventClose})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closing := t.closing
			t.mu.Unlock()
			if !closing && ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				t.emit(Event{Kind: EventError, Err: err})
			}
			return
		}
		t.emit(Event{Kind: EventMessage, Data: data})
	}
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closing = true
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}
		msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
		werr := conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(writeTimeout))
		if werr != nil && !errors.Is(werr, ws.ErrCloseSent) {
			err = werr
		}
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}
