package feedserver

import (
	"log/slog"
	"net/http"

	ws "github.com/gorilla/websocket"
)

// Handler upgrades GET requests to a feed connection.
func (h *Hub) Handler() http.HandlerFunc {
	upgrader := ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		// Consoles connect from other origins during development.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrader writes the error response itself.
			slog.Error("feedserver.handler.upgrade_failed",
				"component", "feedserver",
				"event", "handler.upgrade_error",
				"error", err,
			)
			return
		}

		c := &client{
			hub:  h,
			conn: conn,
			send: make(chan []byte, sendBufferSize),
		}
		if err := h.register(c); err != nil {
			slog.Error("feedserver.handler.register_failed",
				"component", "feedserver",
				"event", "handler.register_error",
				"error", err,
			)
			conn.Close()
			return
		}

		slog.Info("feedserver.handler.connected",
			"component", "feedserver",
			"event", "handler.connected",
			"remote_addr", r.RemoteAddr,
		)

		go c.writePump()
		c.readPump()
	}
}
