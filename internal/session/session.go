package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is the canonical record for one tracked visitor. The registry
// owns all Session values; callers only ever see copies produced by Clone,
// so external mutation can never leak back into the registry.
type Session struct {
	ID            string            `json:"id"`
	State         State             `json:"state"`
	Stage         string            `json:"stage"`
	RoutingToken  string            `json:"routingToken"`
	RoutingPath   string            `json:"routingPath"`
	Connected     bool              `json:"connected"`
	Transitioning bool              `json:"transitioning"`
	Address       string            `json:"address"`
	Identity      string            `json:"identity"`
	Annotations   map[string]string `json:"annotations,omitempty"`

	CreatedAt       time.Time `json:"createdAt"`
	LastHeartbeatAt time.Time `json:"lastHeartbeatAt"`
	LastActivityAt  time.Time `json:"lastActivityAt"`

	// stageTimer guards an in-flight stage transition: it fires when the
	// client fails to finish loading within the grace window and marks the
	// session disconnected. Owned by the registry, cancelled on Delete.
	stageTimer *time.Timer
}

// DeriveID computes the stable session identity for a client fingerprint.
// The same address + identity string always maps to the same id, so a
// reconnecting client lands on its existing session.
func DeriveID(address, identity string) string {
	sum := sha256.Sum256([]byte(address + identity))
	return hex.EncodeToString(sum[:])[:8]
}

// Clone returns a deep copy of the session, duplicating the annotations
// map so the copy can be mutated independently. The timer handle is not
// carried over; it belongs to the registry's original.
func (s *Session) Clone() *Session {
	c := *s
	c.stageTimer = nil
	if len(s.Annotations) > 0 {
		c.Annotations = make(map[string]string, len(s.Annotations))
		for k, v := range s.Annotations {
			c.Annotations[k] = v
		}
	}
	return &c
}

// PendingView is the reduced observer payload for unverified sessions.
// It deliberately carries no routing token and no stage: unverified
// traffic is visible only as an arrival notice.
type PendingView struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Session) pendingView() PendingView {
	return PendingView{
		ID:        s.ID,
		Address:   s.Address,
		Identity:  s.Identity,
		CreatedAt: s.CreatedAt,
	}
}

func (s *Session) stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastHeartbeatAt) > timeout
}

func (s *Session) idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivityAt) > timeout
}
