package session

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestCloneIsolatesAnnotations(t *testing.T) {
	orig := &Session{
		ID:          "abc12345",
		Annotations: map[string]string{"country": "DE"},
	}

	c := orig.Clone()
	c.Annotations["country"] = "JP"
	c.Stage = "Review"

	if orig.Annotations["country"] != "DE" {
		t.Error("Clone did not copy annotations; mutation leaked into original")
	}
	if orig.Stage == "Review" {
		t.Error("Clone shares struct with original")
	}
}

func TestCloneDropsTimer(t *testing.T) {
	orig := &Session{ID: "abc12345"}
	orig.stageTimer = time.AfterFunc(time.Hour, func() {})
	defer orig.stageTimer.Stop()

	if c := orig.Clone(); c.stageTimer != nil {
		t.Error("Clone carried the stage timer handle")
	}
}

func TestPendingViewOmitsToken(t *testing.T) {
	s := &Session{
		ID:           "abc12345",
		Address:      "203.0.113.1",
		Identity:     "agent-a",
		RoutingToken: "secret",
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	view := s.pendingView()
	if view.ID != s.ID || view.Address != s.Address || view.Identity != s.Identity {
		t.Errorf("pendingView = %+v", view)
	}
	if !view.CreatedAt.Equal(s.CreatedAt) {
		t.Error("pendingView lost CreatedAt")
	}
}

func TestRoutingPathShape(t *testing.T) {
	path := routingPath("Review", "abc12345", "tok-1")

	if !strings.HasPrefix(path, "/Review?") {
		t.Fatalf("path = %q, want /Review?... prefix", path)
	}
	u, err := url.Parse(path)
	if err != nil {
		t.Fatalf("path does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "abc12345" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("token") != "tok-1" {
		t.Errorf("token = %q", q.Get("token"))
	}
}
