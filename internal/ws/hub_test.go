package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sessiongate/backend/internal/session"
)

// newConnPair upgrades one websocket connection through a throwaway
// httptest server and returns both ends.
func newConnPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server side of connection never arrived")
	}
	return server, client
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func newTestHub() *Hub {
	return NewHub(func() InitPayload {
		return InitPayload{
			Settings: session.DefaultSettings(),
			Stages:   []string{"Gate", "Loading"},
		}
	})
}

func TestHubAddSendsInitSnapshot(t *testing.T) {
	hub := newTestHub()
	server, client := newConnPair(t)

	o := hub.Add(server)
	defer hub.Remove(o)

	msg := readMessage(t, client)
	if msg.Type != MsgInit {
		t.Fatalf("first message type = %q, want %q", msg.Type, MsgInit)
	}
	var init InitPayload
	if err := json.Unmarshal(msg.Payload, &init); err != nil {
		t.Fatalf("init payload: %v", err)
	}
	if len(init.Stages) != 2 {
		t.Errorf("init stages = %v", init.Stages)
	}
	if !init.Settings.Enabled {
		t.Error("init settings not carried")
	}
}

func TestHubEmitFanout(t *testing.T) {
	hub := newTestHub()

	serverA, clientA := newConnPair(t)
	serverB, clientB := newConnPair(t)
	oa := hub.Add(serverA)
	ob := hub.Add(serverB)
	defer hub.Remove(oa)
	defer hub.Remove(ob)

	readMessage(t, clientA) // init
	readMessage(t, clientB)

	if got := hub.ObserverCount(); got != 2 {
		t.Fatalf("ObserverCount = %d, want 2", got)
	}

	hub.Emit(session.EventSessionCreated, &session.Session{ID: "abc12345"})

	for _, client := range []*websocket.Conn{clientA, clientB} {
		msg := readMessage(t, client)
		if string(msg.Type) != session.EventSessionCreated {
			t.Errorf("event type = %q, want %q", msg.Type, session.EventSessionCreated)
		}
		var s session.Session
		if err := json.Unmarshal(msg.Payload, &s); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if s.ID != "abc12345" {
			t.Errorf("payload id = %q", s.ID)
		}
	}
}

func TestHubRemoveClosesConnection(t *testing.T) {
	hub := newTestHub()
	server, client := newConnPair(t)

	o := hub.Add(server)
	readMessage(t, client)

	hub.Remove(o)
	if got := hub.ObserverCount(); got != 0 {
		t.Errorf("ObserverCount after Remove = %d, want 0", got)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("client read succeeded after Remove; connection not closed")
	}
}

func TestHubRemoveTwice(t *testing.T) {
	hub := newTestHub()
	server, client := newConnPair(t)
	_ = client

	o := hub.Add(server)
	hub.Remove(o)
	hub.Remove(o) // second remove must not close the channel again
}

func TestHubDropsSlowObserver(t *testing.T) {
	hub := newTestHub()

	// An observer with a full, undrained channel: the first Emit cannot
	// queue and must evict it rather than block.
	slow := &observer{send: make(chan []byte)}
	hub.mu.Lock()
	hub.observers[slow] = true
	hub.mu.Unlock()

	done := make(chan struct{})
	go func() {
		hub.Emit(session.EventSessionUpdated, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow observer")
	}
	if got := hub.ObserverCount(); got != 0 {
		t.Errorf("slow observer not evicted, ObserverCount = %d", got)
	}
}

func TestHubEmitWithNoObservers(t *testing.T) {
	hub := newTestHub()
	hub.Emit(session.EventSessionUpdated, nil) // should not panic
}

func TestHubEmitDuringRemoveConcurrent(t *testing.T) {
	hub := newTestHub()
	var wg sync.WaitGroup

	// Emit must never send on a channel Remove has closed, no matter how
	// the two interleave.
	for i := 0; i < 50; i++ {
		o := &observer{send: make(chan []byte, 1)}
		hub.mu.Lock()
		hub.observers[o] = true
		hub.mu.Unlock()

		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Emit(session.EventSessionUpdated, nil)
		}()
		go func(o *observer) {
			defer wg.Done()
			hub.Remove(o)
		}(o)
	}
	wg.Wait()
}
