package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers are dashboards on arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// subscribe upgrades the connection and parks it in the registry. The
// read loop exists only to notice the peer going away; subscribers are
// not expected to send anything.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := h.registry.Add(conn)
	defer h.registry.Remove(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
