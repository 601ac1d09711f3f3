package server

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/aminox1/ludostore/internal/auth"
	"github.com/aminox1/ludostore/internal/presence"
	"github.com/aminox1/ludostore/internal/store"
	"github.com/aminox1/ludostore/internal/worker"
)

// Config holds server configuration
type Config struct {
	AllowedOrigins  []string
	MaxUploadBytes  int64
	DownloadsPerMin int
	PurchasesPerMin int
	StagingDir      string // temp dir for uploaded builds awaiting packaging
}

// Message represents an incoming presence WebSocket message
type Message struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

// Event represents an outgoing presence WebSocket message
type Event struct {
	Type    string                `json:"type"`
	ID      string                `json:"id,omitempty"`
	Message string                `json:"message,omitempty"`
	Players []presence.PlayerView `json:"players,omitempty"`
}

// Server wires the storefront API and the presence gateway together.
type Server struct {
	catalog  *store.Store
	auth     *auth.Manager
	registry *presence.Registry
	hub      *Hub
	packer   *worker.Worker
	cfg      Config

	purchaseLimiter *RequestRateLimiter
	downloadLimiter *RequestRateLimiter
}

// NewServer creates the storefront server. The presence registry broadcasts
// through the hub; the packer receives build uploads from the admin API.
func NewServer(catalog *store.Store, authMgr *auth.Manager, packer *worker.Worker, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 512 << 20
	}
	if cfg.PurchasesPerMin <= 0 {
		cfg.PurchasesPerMin = 20
	}
	if cfg.DownloadsPerMin <= 0 {
		cfg.DownloadsPerMin = 10
	}

	s := &Server{
		catalog:         catalog,
		auth:            authMgr,
		hub:             NewHub(),
		packer:          packer,
		cfg:             cfg,
		purchaseLimiter: NewRequestRateLimiter(cfg.PurchasesPerMin),
		downloadLimiter: NewRequestRateLimiter(cfg.DownloadsPerMin),
	}
	s.registry = presence.NewRegistry(func(players []presence.PlayerView) {
		s.hub.Broadcast(Event{Type: "players", Players: players})
	})
	return s
}

// Registry exposes the presence registry (health endpoint, tests).
func (s *Server) Registry() *presence.Registry {
	return s.registry
}

// Hub exposes the websocket hub (health endpoint, shutdown).
func (s *Server) Hub() *Hub {
	return s.hub
}

// HandlePlayersSocket upgrades the connection and tracks the caller's
// presence until the socket closes. Authentication happens before the
// upgrade; anonymous dials are rejected with 401.
func (s *Server) HandlePlayersSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		log.Printf("[WS] ❌ Error accepting client: %v", err)
		return
	}

	connID := uuid.New().String()
	s.hub.Add(conn, connID)
	log.Printf("[WS] ➕ Player %s connected as %s (sockets: %d)", user.DisplayName, connID, s.hub.Count())

	// Connect broadcasts the post-mutation snapshot to every subscriber,
	// this socket included, which doubles as the welcome roster.
	s.registry.Connect(user.ID, connID, user.DisplayName)

	s.handleMessages(r.Context(), conn, user.ID)

	s.hub.Remove(conn)
	s.registry.Disconnect(connID)
	_ = conn.Close(websocket.StatusNormalClosure, "disconnected")
	log.Printf("[WS] ➖ Player %s disconnected (%s, sockets: %d)", user.DisplayName, connID, s.hub.Count())
}

// handleMessages processes incoming messages from one presence socket.
func (s *Server) handleMessages(ctx context.Context, conn *websocket.Conn, userID string) {
	for {
		var msg Message
		err := wsjson.Read(ctx, conn, &msg)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				ctx.Err() != nil {
				return
			}
			if !errors.Is(err, context.Canceled) {
				log.Printf("[WS] ⚠️ Error reading message: %v", err)
			}
			return
		}

		s.routeMessage(ctx, conn, userID, &msg)
	}
}

// routeMessage routes a message to the appropriate handler
func (s *Server) routeMessage(ctx context.Context, conn *websocket.Conn, userID string, msg *Message) {
	switch msg.Type {
	case "set_status":
		s.registry.SetStatus(userID, msg.Status)
	case "ping":
		_ = wsjson.Write(ctx, conn, Event{Type: "pong", ID: msg.ID})
	default:
		log.Printf("[WS] ⚠️ Unknown message type: %s", msg.Type)
		s.sendError(ctx, conn, msg.ID, "Unknown message type: "+msg.Type)
	}
}

// sendError sends an error event to one client
func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, id, message string) {
	_ = wsjson.Write(ctx, conn, Event{Type: "error", ID: id, Message: message})
}

// requestUser resolves the caller's session to a full account record.
func (s *Server) requestUser(r *http.Request) (store.User, bool) {
	userID := s.auth.UserFromRequest(r)
	if userID == "" {
		return store.User{}, false
	}
	u, err := s.catalog.GetUser(userID)
	if err != nil {
		return store.User{}, false
	}
	return u, true
}

// Shutdown disconnects all presence subscribers.
func (s *Server) Shutdown() {
	s.hub.Shutdown()
}
