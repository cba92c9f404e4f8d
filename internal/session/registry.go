package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownStage is returned when a stage change names a stage outside
// the configured set. This is the only error condition the registry
// reports; absence of a session is always a (zero, false) result.
var ErrUnknownStage = errors.New("unknown stage")

// BanChecker is the slice of the ban store the registry consults before
// creating or reactivating a session. The check runs outside the registry
// lock because implementations may do network I/O.
type BanChecker interface {
	IsBanned(ctx context.Context, address string) (bool, error)
}

// Config holds the lifecycle thresholds for the registry and its sweeper.
type Config struct {
	HeartbeatTimeout time.Duration
	MaxAge           time.Duration
	PendingMaxAge    time.Duration
	TransitionGrace  time.Duration
	SweepInterval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout: 30 * time.Second,
		MaxAge:           30 * time.Minute,
		PendingMaxAge:    5 * time.Minute,
		TransitionGrace:  5 * time.Second,
		SweepInterval:    10 * time.Second,
	}
}

// Registry owns the canonical session set and the routing-path index.
// A single mutex guards both so no operation can ever observe one
// mutated without the other. All critical sections are O(1) map work;
// anything that may block (ban checks, enrichment lookups) happens
// outside the lock with a second short atomic step afterwards.
//
// Events are emitted while the lock is held, which makes per-session
// delivery order equal commit order; the sink must therefore never block.
type Registry struct {
	cfg    Config
	stages *StageSet
	sink   Sink
	bans   BanChecker
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	routes   *routeIndex
	settings Settings
}

func NewRegistry(cfg Config, stages *StageSet, settings Settings, sink Sink) *Registry {
	if sink == nil {
		sink = nopSink{}
	}
	return &Registry{
		cfg:      cfg,
		stages:   stages,
		sink:     sink,
		now:      time.Now,
		sessions: make(map[string]*Session),
		routes:   newRouteIndex(),
		settings: settings,
	}
}

// UseBanList installs the ban store consulted on Create. Without one,
// nothing is ever considered banned.
func (r *Registry) UseBanList(b BanChecker) {
	r.bans = b
}

// Create returns the session for the given client fingerprint, creating
// a Pending one on first contact. An existing session (Pending or
// Verified) is reactivated, never replaced, so the routing token survives
// reconnects. A banned address yields (nil, false).
func (r *Registry) Create(ctx context.Context, address, identity string) (*Session, bool) {
	if r.bans != nil {
		banned, err := r.bans.IsBanned(ctx, address)
		if err != nil {
			// Best effort: a failing ban store must not block creation.
			log.Printf("session: ban check for %s failed: %v", address, err)
		} else if banned {
			return nil, false
		}
	}

	id := DeriveID(address, identity)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		r.stopStageTimerLocked(s)
		s.Connected = true
		s.Transitioning = false
		s.LastHeartbeatAt = now
		s.LastActivityAt = now
		r.emitUpdatedLocked(s)
		return s.Clone(), false
	}

	stage := r.settings.EntryStage
	if canonical, ok := r.stages.Canonical(stage); ok {
		stage = canonical
	}

	s := &Session{
		ID:              id,
		State:           Pending,
		Stage:           stage,
		RoutingToken:    uuid.NewString(),
		Connected:       true,
		Address:         address,
		Identity:        identity,
		CreatedAt:       now,
		LastHeartbeatAt: now,
		LastActivityAt:  now,
	}
	s.RoutingPath = routingPath(s.Stage, s.ID, s.RoutingToken)
	r.sessions[id] = s
	r.routes.put(s.RoutingPath, id)

	r.sink.Emit(EventPendingSessionCreated, s.pendingView())
	return s.Clone(), true
}

// Get looks the session up by id. Absence is a normal outcome.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Promote moves a Pending session to Verified and makes it visible to
// observers via session_created. Promoting an already-verified session is
// a no-op that returns the existing session; session_created is emitted
// at most once per session lifetime.
func (r *Registry) Promote(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if s.State == Verified {
		return s.Clone(), true
	}

	now := r.now()
	s.State = Verified
	s.Connected = true
	s.LastHeartbeatAt = now
	s.LastActivityAt = now
	if stage, ok := r.stages.Canonical(r.settings.PostVerifyStage); ok {
		r.setStageLocked(s, stage)
	}
	r.sink.Emit(EventSessionCreated, s.Clone())
	return s.Clone(), true
}

// UpdateStage moves the session to a new stage and rebuilds its routing
// path (token unchanged). Unknown stages are rejected with
// ErrUnknownStage; an unknown session returns ok=false without error.
func (r *Registry) UpdateStage(id, stage string) (string, bool, error) {
	canonical, known := r.stages.Canonical(stage)
	if !known {
		return "", false, ErrUnknownStage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", false, nil
	}
	r.setStageLocked(s, canonical)
	s.LastActivityAt = r.now()
	r.emitUpdatedLocked(s)
	return s.RoutingPath, true, nil
}

// BeginTransition marks an asynchronous stage change as in flight and
// arms the grace timer: if the client does not report the load finished
// within the grace window, the session is marked disconnected.
func (r *Registry) BeginTransition(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Transitioning = true
	s.Connected = true
	s.LastHeartbeatAt = r.now()
	r.armStageTimerLocked(s)
	r.emitUpdatedLocked(s)
	return true
}

// EndTransition clears the in-flight flag and cancels the grace timer.
func (r *Registry) EndTransition(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	r.stopStageTimerLocked(s)
	now := r.now()
	s.Transitioning = false
	s.Connected = true
	s.LastHeartbeatAt = now
	s.LastActivityAt = now
	r.emitUpdatedLocked(s)
	return true
}

// Heartbeat refreshes liveness for the session.
func (r *Registry) Heartbeat(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	now := r.now()
	s.Connected = true
	s.LastHeartbeatAt = now
	s.LastActivityAt = now
	r.emitUpdatedLocked(s)
	return true
}

// Activity records non-heartbeat client activity (scrolls, key presses —
// whatever the application maps onto its activity ping).
func (r *Registry) Activity(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.LastActivityAt = r.now()
	r.emitUpdatedLocked(s)
	return true
}

// Disconnect handles the transport connection dropping. While a stage
// transition is in flight the disconnect is deferred by the grace window
// so page navigation does not flap the connected flag; otherwise the
// session is marked disconnected immediately.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	s.LastHeartbeatAt = r.now()
	if s.Transitioning {
		r.armStageTimerLocked(s)
		return
	}
	s.Connected = false
	r.emitUpdatedLocked(s)
}

// SetAnnotations merges application-defined annotations into the session.
// The registry attaches no meaning to the keys. This is the second atomic
// step after an external enrichment lookup.
func (r *Registry) SetAnnotations(id string, ann map[string]string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	if s.Annotations == nil {
		s.Annotations = make(map[string]string, len(ann))
	}
	for k, v := range ann {
		s.Annotations[k] = v
	}
	r.emitUpdatedLocked(s)
	return true
}

// ValidateAccess reports whether the presented token and client
// fingerprint are internally consistent with the stored session. The
// token is bound to the fingerprint the session was created with, so a
// replayed token from a different client context fails.
func (r *Registry) ValidateAccess(id, token, address, identity string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	stored := s.RoutingToken
	r.mu.Unlock()

	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return false
	}
	return DeriveID(address, identity) == id
}

// ResolveRoute maps a routing path back to its session. A dangling index
// entry is a defect; it is healed by dropping the entry rather than
// surfacing the inconsistency.
func (r *Registry) ResolveRoute(path string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.routes.resolve(path)
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	if !ok || s.RoutingPath != path {
		log.Printf("session: healed dangling route entry %q", path)
		r.routes.remove(path)
		return nil, false
	}
	return s.Clone(), true
}

// Delete removes the session, its route entry and any armed timer in one
// atomic step. Deleting an unknown id is a silent no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(id)
}

// DeleteByAddress removes every session created from the given address
// and returns their ids (the ban cascade). session_removed is emitted for
// each verified session.
func (r *Registry) DeleteByAddress(address string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, s := range r.sessions {
		if s.Address == address {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		r.deleteLocked(id)
	}
	return ids
}

// Clear drops every session and emits a single sessions_cleared.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	for _, s := range r.sessions {
		r.stopStageTimerLocked(s)
	}
	r.sessions = make(map[string]*Session)
	r.routes = newRouteIndex()
	r.sink.Emit(EventSessionsCleared, nil)
	return n
}

// VerifiedSessions returns snapshots of all verified sessions, for the
// observer init payload.
func (r *Registry) VerifiedSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.State == Verified {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Counts returns the verified and pending session counts.
func (r *Registry) Counts() (verified, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.State == Verified {
			verified++
		} else {
			pending++
		}
	}
	return verified, pending
}

// Settings returns a copy of the live settings.
func (r *Registry) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// UpdateSettings swaps the live settings and returns the previous value
// so callers can react to edges (e.g. enabled flipping off).
func (r *Registry) UpdateSettings(next Settings) Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.settings
	r.settings = next
	r.sink.Emit(EventSettingsUpdated, next)
	return prev
}

// Sweep runs one cleanup pass: flips connected off for verified sessions
// past the heartbeat timeout, deletes verified sessions past the max age
// and pending sessions past the pending max age. The sweeper calls this
// on its interval; tests call it directly with a chosen now.
func (r *Registry) Sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, s := range r.sessions {
		switch s.State {
		case Verified:
			if s.stale(now, r.cfg.MaxAge) {
				expired = append(expired, id)
				continue
			}
			if s.Connected && s.stale(now, r.cfg.HeartbeatTimeout) {
				s.Connected = false
				r.emitUpdatedLocked(s)
			}
		case Pending:
			if s.idle(now, r.cfg.PendingMaxAge) {
				expired = append(expired, id)
			}
		}
	}
	for _, id := range expired {
		r.deleteLocked(id)
	}
}

func (r *Registry) deleteLocked(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	r.stopStageTimerLocked(s)
	r.routes.remove(s.RoutingPath)
	delete(r.sessions, id)
	if s.State == Verified {
		r.sink.Emit(EventSessionRemoved, id)
	}
}

func (r *Registry) setStageLocked(s *Session, stage string) {
	r.routes.remove(s.RoutingPath)
	s.Stage = stage
	s.RoutingPath = routingPath(stage, s.ID, s.RoutingToken)
	r.routes.put(s.RoutingPath, s.ID)
}

// armStageTimerLocked (re)arms the per-session grace timer. The callback
// re-checks existence and the transitioning flag under the lock, so a
// timer that fires after deletion or after the transition completed is a
// no-op.
func (r *Registry) armStageTimerLocked(s *Session) {
	r.stopStageTimerLocked(s)
	id := s.ID
	s.stageTimer = time.AfterFunc(r.cfg.TransitionGrace, func() {
		r.expireTransition(id)
	})
}

func (r *Registry) stopStageTimerLocked(s *Session) {
	if s.stageTimer != nil {
		s.stageTimer.Stop()
		s.stageTimer = nil
	}
}

func (r *Registry) expireTransition(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.Transitioning {
		return
	}
	s.stageTimer = nil
	s.Transitioning = false
	s.Connected = false
	r.emitUpdatedLocked(s)
}

// emitUpdatedLocked publishes session_updated for verified sessions only.
// Pending sessions never produce session_* events.
func (r *Registry) emitUpdatedLocked(s *Session) {
	if s.State != Verified {
		return
	}
	r.sink.Emit(EventSessionUpdated, s.Clone())
}
