package session

import (
	"context"
	"log"
	"time"
)

// Sweeper drives the registry's periodic cleanup pass.
type Sweeper struct {
	reg      *Registry
	interval time.Duration
}

func NewSweeper(reg *Registry) *Sweeper {
	interval := reg.cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	return &Sweeper{reg: reg, interval: interval}
}

// Run blocks until the context is cancelled, sweeping on each tick.
// Call it in its own goroutine.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	log.Printf("session: sweeper running every %s", sw.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.reg.Sweep(sw.reg.now())
		}
	}
}
