package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// observer is one attached administrative connection. Writes go through
// a buffered channel drained by a dedicated pump so a slow observer can
// never stall an emitting goroutine.
type observer struct {
	conn *websocket.Conn
	send chan []byte
}

func newObserver(conn *websocket.Conn) *observer {
	o := &observer{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go o.writePump()
	return o
}

func (o *observer) writePump() {
	defer o.conn.Close()
	for msg := range o.send {
		if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (o *observer) close() {
	close(o.send)
}

// Hub fans registry events out to every attached observer. It implements
// session.Sink; Emit is fire-and-forget and never blocks the caller. The
// observer set has its own lock, fully decoupled from registry locking.
type Hub struct {
	mu        sync.RWMutex
	observers map[*observer]bool
	snapshot  func() InitPayload
}

// NewHub builds a hub. snapshot produces the init payload sent to each
// newly attached observer; it runs outside any registry lock.
func NewHub(snapshot func() InitPayload) *Hub {
	return &Hub{
		observers: make(map[*observer]bool),
		snapshot:  snapshot,
	}
}

// Add registers an observer connection and immediately sends it the full
// state snapshot.
func (h *Hub) Add(conn *websocket.Conn) *observer {
	o := newObserver(conn)

	// The snapshot is queued before the observer becomes visible to Emit
	// and Remove, so nothing can close the channel under this send.
	init := outMessage{Type: MsgInit, Payload: h.snapshot()}
	if data, err := json.Marshal(init); err != nil {
		log.Printf("ws: init marshal error: %v", err)
	} else {
		o.send <- data
	}

	h.mu.Lock()
	h.observers[o] = true
	h.mu.Unlock()
	return o
}

func (h *Hub) Remove(o *observer) {
	h.mu.Lock()
	if _, ok := h.observers[o]; ok {
		delete(h.observers, o)
		o.close()
	}
	h.mu.Unlock()
}

// Emit delivers one event to all observers. Delivery is best effort: an
// observer that cannot keep up is disconnected rather than awaited.
//
// The sends happen under the read lock so they cannot race Remove's
// close of a channel; each send is a non-blocking select, so the lock is
// never held across a stalled write.
func (h *Hub) Emit(event string, payload any) {
	data, err := json.Marshal(outMessage{Type: MessageType(event), Payload: payload})
	if err != nil {
		log.Printf("ws: emit marshal error: %v", err)
		return
	}

	var slow []*observer
	h.mu.RLock()
	for o := range h.observers {
		select {
		case o.send <- data:
		default:
			slow = append(slow, o)
		}
	}
	h.mu.RUnlock()

	for _, o := range slow {
		log.Printf("ws: observer too slow, disconnecting")
		h.Remove(o)
	}
}

func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}
