// Package server expone la API de la tienda y el canal de presencia WebSocket.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const broadcastTimeout = 5 * time.Second

// Hub tracks subscribed presence sockets thread-safely. Every connected
// socket receives every presence snapshot, whoever caused the mutation.
type Hub struct {
	conns map[*websocket.Conn]string // conn -> connection id
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]string)}
}

// Add registers a subscribed socket under its connection id.
func (h *Hub) Add(conn *websocket.Conn, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = connID
}

// Remove unregisters a socket.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Count returns the number of subscribed sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast pushes a payload to every subscribed socket. Writes run outside
// the hub lock, one goroutine per socket, so one slow client never delays
// the rest; sockets that fail to accept the write are dropped.
func (h *Hub) Broadcast(payload any) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		go func(conn *websocket.Conn) {
			ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
			defer cancel()
			if err := wsjson.Write(ctx, conn, payload); err != nil {
				log.Printf("[WS] ⚠️ Dropping unresponsive subscriber: %v", err)
				h.Remove(conn)
				_ = conn.Close(websocket.StatusPolicyViolation, "write timeout")
			}
		}(conn)
	}
}

// Shutdown closes every subscribed socket.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Printf("[WS] 🛑 Shutting down, disconnecting %d subscribers", len(h.conns))
	for conn := range h.conns {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
	}
	h.conns = make(map[*websocket.Conn]string)
}
