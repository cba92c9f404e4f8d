package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// userConn is one end-user transport connection.
type userConn struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newUserConn(id string, conn *websocket.Conn) *userConn {
	c := &userConn{
		id:   id,
		conn: conn,
		send: make(chan []byte, 16),
	}
	go c.writePump()
	return c
}

func (c *userConn) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// close is idempotent: a replaced transport is closed by Attach and then
// again by its own read loop's Detach.
func (c *userConn) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// Gateway tracks the live end-user connection per session id so that
// administrative actions (redirect, remove, ban) can reach the client.
// At most one connection represents a session at a time; a reconnect
// replaces the previous transport.
//
// All channel sends and closes happen under the gateway lock, so a send
// can never race a close. Sends are non-blocking selects, so holding the
// lock across them is cheap.
type Gateway struct {
	mu    sync.Mutex
	conns map[string]*userConn
}

func NewGateway() *Gateway {
	return &Gateway{conns: make(map[string]*userConn)}
}

// Attach binds a connection to a session id, closing any connection it
// replaces.
func (g *Gateway) Attach(id string, conn *websocket.Conn) *userConn {
	c := newUserConn(id, conn)

	g.mu.Lock()
	if prev := g.conns[id]; prev != nil {
		prev.close()
	}
	g.conns[id] = c
	g.mu.Unlock()
	return c
}

// Detach releases the connection and reports whether it was still the
// session's current binding. A stale detach from a replaced or kicked
// transport returns false; callers use the result to decide whether the
// session itself went offline.
func (g *Gateway) Detach(c *userConn) bool {
	g.mu.Lock()
	current := g.conns[c.id] == c
	if current {
		delete(g.conns, c.id)
	}
	c.close()
	g.mu.Unlock()
	return current
}

// Send pushes a message to the session's live connection, if any.
// Best effort: a full buffer drops the message rather than blocking.
func (g *Gateway) Send(id string, msgType MessageType, payload any) bool {
	data, err := json.Marshal(outMessage{Type: msgType, Payload: payload})
	if err != nil {
		log.Printf("ws: user send marshal error: %v", err)
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.conns[id]
	if c == nil {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Kick redirects the session's client to a safe URL and tears the
// connection down.
func (g *Gateway) Kick(id, redirectURL string) {
	data, err := json.Marshal(outMessage{Type: MsgRedirect, Payload: RedirectPayload{Path: redirectURL}})
	if err != nil {
		return
	}

	g.mu.Lock()
	if c := g.conns[id]; c != nil {
		delete(g.conns, id)
		select {
		case c.send <- data:
		default:
		}
		c.close()
	}
	g.mu.Unlock()
}

// KickAll redirects and disconnects every live client.
func (g *Gateway) KickAll(redirectURL string) {
	data, err := json.Marshal(outMessage{Type: MsgRedirect, Payload: RedirectPayload{Path: redirectURL}})
	if err != nil {
		return
	}

	g.mu.Lock()
	for _, c := range g.conns {
		select {
		case c.send <- data:
		default:
		}
		c.close()
	}
	g.conns = make(map[string]*userConn)
	g.mu.Unlock()
}

func (g *Gateway) ConnCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}
