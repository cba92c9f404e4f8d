// Package notify carries fire-and-forget operator notifications out of
// the session core. Delivery to a real channel (chat bot, webhook) is an
// external concern; the implementations here log or drop.
package notify

import "log"

// Notifier receives out-of-band event notifications. Implementations
// must return quickly and never fail the caller; the core never awaits
// delivery.
type Notifier interface {
	Notify(event string, data map[string]any)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(string, map[string]any) {}

// Log writes notifications to the process log. It is the default when no
// delivery channel is configured.
type Log struct{}

func (Log) Notify(event string, data map[string]any) {
	log.Printf("notify: %s %v", event, data)
}
