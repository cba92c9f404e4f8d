package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sessiongate/backend/internal/banlist"
	"github.com/sessiongate/backend/internal/session"
)

// handleAdmin attaches an observer connection. The hub sends the init
// snapshot on attach; afterwards the connection receives every registry
// event and may issue administrative commands.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: admin upgrade error: %v", err)
		return
	}

	log.Printf("Observer connected: %s", r.RemoteAddr)
	o := s.hub.Add(conn)
	defer func() {
		s.hub.Remove(o)
		log.Printf("Observer disconnected: %s", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.dispatchAdmin(msg)
	}
}

func (s *Server) dispatchAdmin(msg Message) {
	ctx := context.Background()

	switch msg.Type {
	case MsgUpdateSettings:
		var next session.Settings
		if err := json.Unmarshal(msg.Payload, &next); err != nil {
			return
		}
		s.updateSettings(next)

	case MsgRedirectUser:
		var p RedirectUserPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		s.redirectUser(p.SessionID, p.Stage)

	case MsgRemoveSession:
		var p SessionIDPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		s.removeSession(p.SessionID)

	case MsgBanIP:
		var p AddressPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		s.banAddress(ctx, p.Address)

	case MsgUnbanIP:
		var p AddressPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		s.unbanAddress(ctx, p.Address)

	case MsgClearSessions:
		s.clearSessions()
	}
}

func (s *Server) updateSettings(next session.Settings) {
	prev := s.reg.UpdateSettings(next)

	// Disabling the service evicts everyone: clients are redirected to
	// the off-ramp and all session state is dropped.
	if prev.Enabled && !next.Enabled {
		s.gateway.KickAll(next.RedirectURL)
		s.reg.Clear()
	}
	if prev.Enabled != next.Enabled {
		verified, pending := s.reg.Counts()
		s.collab.Notifier.Notify("status", map[string]any{
			"enabled":  next.Enabled,
			"verified": verified,
			"pending":  pending,
		})
	}
}

func (s *Server) redirectUser(id, stage string) {
	// Same order as the client path: validate the stage first so a typo
	// never arms the grace timer.
	path, ok, err := s.reg.UpdateStage(id, stage)
	if err != nil {
		log.Printf("ws: admin redirect to unknown stage %q", stage)
		return
	}
	if !ok {
		return
	}
	s.reg.BeginTransition(id)
	s.gateway.Send(id, MsgRedirect, RedirectPayload{Path: path})
}

func (s *Server) removeSession(id string) {
	settings := s.reg.Settings()
	s.gateway.Kick(id, settings.RedirectURL)
	s.reg.Delete(id)
	s.collab.Notifier.Notify("session_removed", map[string]any{
		"sessionId": id,
		"removedBy": "admin",
	})
}

func (s *Server) banAddress(ctx context.Context, raw string) {
	address, err := s.collab.Resolver.Resolve(ctx, raw)
	if err != nil {
		log.Printf("ws: resolving %q for ban failed, banning raw: %v", raw, err)
		address = raw
	}

	if err := s.bans.Ban(ctx, address, banlist.Meta{
		BannedBy: "admin",
		BannedAt: time.Now(),
	}); err != nil {
		log.Printf("ws: ban %s failed: %v", address, err)
	}

	settings := s.reg.Settings()
	for _, id := range s.reg.DeleteByAddress(address) {
		s.gateway.Kick(id, settings.RedirectURL)
	}
	s.hub.Emit(session.EventIPBanned, address)
	s.collab.Notifier.Notify("ip_banned", map[string]any{"address": address})
}

func (s *Server) unbanAddress(ctx context.Context, raw string) {
	address, err := s.collab.Resolver.Resolve(ctx, raw)
	if err != nil {
		address = raw
	}
	if err := s.bans.Unban(ctx, address); err != nil {
		log.Printf("ws: unban %s failed: %v", address, err)
	}
	s.hub.Emit(session.EventIPUnbanned, address)
	s.collab.Notifier.Notify("ip_unbanned", map[string]any{"address": address})
}

func (s *Server) clearSessions() {
	settings := s.reg.Settings()
	s.gateway.KickAll(settings.RedirectURL)
	n := s.reg.Clear()
	s.collab.Notifier.Notify("sessions_cleared", map[string]any{"count": n})
}
