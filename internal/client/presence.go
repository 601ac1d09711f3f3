package client

import (
	"context"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// RosterEvent is one server push on the presence channel.
type RosterEvent struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	Players []Player `json:"players,omitempty"`
}

// PresenceConn is an open presence socket. Reading and writing are safe
// from different goroutines.
type PresenceConn struct {
	conn *websocket.Conn
}

// DialPresence opens the presence channel. The session token rides the
// query string since non-browser websocket dials carry no cookies.
func DialPresence(ctx context.Context, serverURL, token string) (*PresenceConn, error) {
	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws/players?token=" + token
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &PresenceConn{conn: conn}, nil
}

// Next blocks until the server pushes an event.
func (p *PresenceConn) Next(ctx context.Context) (RosterEvent, error) {
	var ev RosterEvent
	err := wsjson.Read(ctx, p.conn, &ev)
	return ev, err
}

// SetStatus publishes a free-form status line to other players.
func (p *PresenceConn) SetStatus(ctx context.Context, status string) error {
	return wsjson.Write(ctx, p.conn, map[string]string{"type": "set_status", "status": status})
}

// Close ends the session; the server marks the player offline once the
// last socket is gone.
func (p *PresenceConn) Close() error {
	return p.conn.Close(websocket.StatusNormalClosure, "bye")
}
