package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/sessiongate/backend/internal/banlist"
	"github.com/sessiongate/backend/internal/lookup"
	"github.com/sessiongate/backend/internal/notify"
	"github.com/sessiongate/backend/internal/session"
)

// Collaborators bundles the external services the boundary layer calls.
// Nil fields fall back to the permissive defaults from internal/lookup.
type Collaborators struct {
	Resolver   lookup.AddressResolver
	Details    lookup.DetailSource
	Classifier lookup.Classifier
	Verifier   lookup.Verifier
	Notifier   notify.Notifier
}

func (c *Collaborators) fillDefaults() {
	if c.Resolver == nil {
		c.Resolver = lookup.HostResolver{}
	}
	if c.Details == nil {
		c.Details = lookup.EmptyDetails{}
	}
	if c.Classifier == nil {
		c.Classifier = lookup.PermissiveClassifier{}
	}
	if c.Verifier == nil {
		c.Verifier = lookup.AcceptAllVerifier{}
	}
	if c.Notifier == nil {
		c.Notifier = notify.Log{}
	}
}

// Options carries the boundary configuration.
type Options struct {
	AuthToken      string
	AllowedOrigins []string
}

// Server is the transport boundary: the end-user websocket gateway, the
// observer websocket, and the two HTTP endpoints (entry and
// verification). It translates transport events into registry calls; the
// registry's own emissions drive all observer notification.
type Server struct {
	reg            *session.Registry
	hub            *Hub
	gateway        *Gateway
	bans           banlist.Store
	collab         Collaborators
	authToken      string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(reg *session.Registry, hub *Hub, gateway *Gateway, bans banlist.Store, collab Collaborators, opts Options) *Server {
	collab.fillDefaults()
	s := &Server{
		reg:            reg,
		hub:            hub,
		gateway:        gateway,
		bans:           bans,
		collab:         collab,
		authToken:      opts.AuthToken,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range opts.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleUser)
	mux.HandleFunc("/admin/ws", s.handleAdmin)
	mux.HandleFunc("/enter", s.handleEnter)
	mux.HandleFunc("/api/verify", s.handleVerify)
}

// handleEnter is the first HTTP contact: it resolves the client address,
// refuses banned clients, creates or reactivates the session, and sends
// the client to its session-scoped routing path. Any failure falls back
// to the configured off-ramp redirect, never an error page.
func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := s.reg.Settings()

	address, err := s.collab.Resolver.Resolve(ctx, lookup.ClientAddress(r))
	if err != nil {
		log.Printf("ws: address resolve failed: %v", err)
		http.Redirect(w, r, settings.RedirectURL, http.StatusFound)
		return
	}

	if !settings.Enabled {
		http.Redirect(w, r, settings.RedirectURL, http.StatusFound)
		return
	}
	if banned, err := s.bans.IsBanned(ctx, address); err == nil && banned {
		http.Redirect(w, r, settings.RedirectURL, http.StatusFound)
		return
	}
	if settings.BotFilter {
		if verdict, err := s.collab.Classifier.Classify(ctx, r); err == nil && verdict.Bot {
			s.collab.Notifier.Notify("bot_rejected", map[string]any{
				"address": address,
				"reason":  verdict.Reason,
			})
			http.Redirect(w, r, settings.RedirectURL, http.StatusFound)
			return
		}
	}

	sess, _ := s.reg.Create(ctx, address, r.UserAgent())
	if sess == nil {
		http.Redirect(w, r, settings.RedirectURL, http.StatusFound)
		return
	}
	http.Redirect(w, r, sess.RoutingPath, http.StatusFound)
}

// handleVerify promotes a session after the external challenge verifier
// accepts its token. The response carries the post-verification routing
// path.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"success": false})
		return
	}

	ctx := r.Context()
	ok, err := s.collab.Verifier.Verify(ctx, req.Token)
	if err != nil {
		log.Printf("ws: challenge verification error: %v", err)
	}
	if err != nil || !ok {
		writeJSON(w, map[string]any{"success": false})
		return
	}

	sess, found := s.reg.Promote(req.SessionID)
	if !found {
		writeJSON(w, map[string]any{"success": false})
		return
	}

	// Enrichment happens off the request path; the registry applies it in
	// a second atomic step.
	go s.annotate(sess.ID, sess.Address)

	s.collab.Notifier.Notify("session_verified", map[string]any{
		"sessionId": sess.ID,
		"address":   sess.Address,
		"identity":  sess.Identity,
	})
	writeJSON(w, map[string]any{
		"success": true,
		"path":    sess.RoutingPath,
	})
}

// handleUser upgrades an end-user connection and pumps its events into
// the registry. Ban, bot and VPN screening all happen before the
// upgrade, outside any registry lock.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := s.reg.Settings()

	address, err := s.collab.Resolver.Resolve(ctx, lookup.ClientAddress(r))
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !settings.Enabled {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if banned, err := s.bans.IsBanned(ctx, address); err == nil && banned {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if settings.BotFilter {
		if verdict, err := s.collab.Classifier.Classify(ctx, r); err == nil && verdict.Bot {
			s.collab.Notifier.Notify("bot_rejected", map[string]any{
				"address": address,
				"reason":  verdict.Reason,
			})
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}
	if settings.BlockVPN {
		if details, err := s.collab.Details.Details(ctx, address); err == nil && details.Anonymized() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: user upgrade error: %v", err)
		return
	}

	sess, created := s.reg.Create(ctx, address, r.UserAgent())
	if sess == nil {
		conn.Close()
		return
	}

	c := s.gateway.Attach(sess.ID, conn)
	s.gateway.Send(sess.ID, MsgSessionIdentity, IdentityPayload{
		SessionID: sess.ID,
		Path:      sess.RoutingPath,
		Verified:  sess.State == session.Verified,
	})
	if created {
		go s.annotate(sess.ID, address)
	}

	s.readUser(c)
}

// readUser runs the inbound message loop for one end-user connection.
// Disconnect fires only when this transport was still the session's
// current binding; a transport replaced by a reconnect tears down
// without touching the live session.
func (s *Server) readUser(c *userConn) {
	defer func() {
		if s.gateway.Detach(c) {
			s.reg.Disconnect(c.id)
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.dispatchUser(c.id, msg)
	}
}

func (s *Server) dispatchUser(id string, msg Message) {
	switch msg.Type {
	case MsgHeartbeat:
		s.reg.Heartbeat(id)

	case MsgActivity:
		s.reg.Activity(id)

	case MsgStageChange:
		var p StageChangePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		// Validate the stage before arming the transition: a rejected
		// stage must not leave the grace timer running.
		path, ok, err := s.reg.UpdateStage(id, p.Stage)
		if err != nil {
			log.Printf("ws: session %s requested unknown stage %q", id, p.Stage)
			return
		}
		if !ok {
			return
		}
		s.reg.BeginTransition(id)
		s.gateway.Send(id, MsgRedirect, RedirectPayload{Path: path})

	case MsgLoading:
		var p LoadingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if p.Loading {
			s.reg.BeginTransition(id)
		} else {
			s.reg.EndTransition(id)
		}
	}
}

// annotate enriches a session with address details, best effort.
func (s *Server) annotate(id, address string) {
	details, err := s.collab.Details.Details(context.Background(), address)
	if err != nil {
		log.Printf("ws: detail lookup for %s failed: %v", address, err)
		return
	}
	if ann := details.Annotations(); len(ann) > 0 {
		s.reg.SetAnnotations(id, ann)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	if r.Header.Get("X-Admin-Token") == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}
	if host == r.Host {
		return true
	}
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
