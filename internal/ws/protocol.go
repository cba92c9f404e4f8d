package ws

import (
	"encoding/json"

	"github.com/sessiongate/backend/internal/session"
	"github.com/sessiongate/backend/internal/stats"
)

type MessageType string

// Observer-bound message types. Registry events pass through with their
// event name as the type, so the constants here mirror internal/session.
const (
	MsgInit MessageType = "init"
)

// End-user-bound message types.
const (
	MsgSessionIdentity MessageType = "session_identity"
	MsgRedirect        MessageType = "redirect"
)

// End-user inbound message types.
const (
	MsgHeartbeat   MessageType = "heartbeat"
	MsgStageChange MessageType = "stage_change"
	MsgActivity    MessageType = "activity"
	MsgLoading     MessageType = "loading"
)

// Admin inbound command types.
const (
	MsgUpdateSettings MessageType = "update_settings"
	MsgRedirectUser   MessageType = "redirect_user"
	MsgRemoveSession  MessageType = "remove_session"
	MsgBanIP          MessageType = "ban_ip"
	MsgUnbanIP        MessageType = "unban_ip"
	MsgClearSessions  MessageType = "clear_sessions"
)

// Message is the wire envelope in both directions. Inbound payloads stay
// raw until the type is known.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// InitPayload reconstructs full observer state on attach: no history
// replay is ever needed.
type InitPayload struct {
	Sessions  []*session.Session `json:"sessions"`
	Settings  session.Settings   `json:"settings"`
	BannedIPs []string           `json:"bannedIps"`
	Stages    []string           `json:"stages"`
	Stats     stats.Snapshot     `json:"stats"`
}

type IdentityPayload struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Verified  bool   `json:"verified"`
}

type RedirectPayload struct {
	Path string `json:"path"`
}

type StageChangePayload struct {
	Stage string `json:"stage"`
}

type LoadingPayload struct {
	Loading bool `json:"loading"`
}

type RedirectUserPayload struct {
	SessionID string `json:"sessionId"`
	Stage     string `json:"stage"`
}

type SessionIDPayload struct {
	SessionID string `json:"sessionId"`
}

type AddressPayload struct {
	Address string `json:"address"`
}
