// Package banlist stores banned client addresses with metadata about who
// banned them and why. Two implementations exist: an in-memory store for
// single-process deployments and a Redis-backed store that survives
// restarts and can be shared across instances.
package banlist

import (
	"context"
	"time"
)

// Meta records the circumstances of a ban.
type Meta struct {
	BannedBy string    `json:"bannedBy"`
	BannedAt time.Time `json:"bannedAt"`
	Reason   string    `json:"reason,omitempty"`
}

// Store is the ban-list contract the session core consumes. Ban and
// Unban are idempotent.
type Store interface {
	IsBanned(ctx context.Context, address string) (bool, error)
	Ban(ctx context.Context, address string, meta Meta) error
	Unban(ctx context.Context, address string) error
	All(ctx context.Context) ([]string, error)
	Close() error
}
