package session

// Observer event names emitted by the registry. Only verified-session
// mutations produce the unrestricted session_* events; pending sessions
// surface solely as pending_session_created with a reduced payload.
const (
	EventSessionCreated        = "session_created"
	EventSessionUpdated        = "session_updated"
	EventSessionRemoved        = "session_removed"
	EventSessionsCleared       = "sessions_cleared"
	EventPendingSessionCreated = "pending_session_created"
	EventSettingsUpdated       = "settings_updated"
	EventIPBanned              = "ip_banned"
	EventIPUnbanned            = "ip_unbanned"
)

// Sink receives registry events for fan-out to observers. Emit must not
// block: the registry calls it while holding its lock so that, per
// session, delivery order matches commit order.
type Sink interface {
	Emit(event string, payload any)
}

type nopSink struct{}

func (nopSink) Emit(string, any) {}
