package session

import (
	"context"
	"testing"
	"time"
)

func TestNewSweeperDefaultsInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	r := NewRegistry(cfg, testStages(), DefaultSettings(), nil)

	sw := NewSweeper(r)
	if sw.interval != DefaultConfig().SweepInterval {
		t.Errorf("interval = %v, want default %v", sw.interval, DefaultConfig().SweepInterval)
	}
}

func TestSweeperRunExpiresSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 10 * time.Millisecond
	r := NewRegistry(cfg, testStages(), DefaultSettings(), nil)

	// Create the session in the past so the first sweep already sees it
	// beyond the pending max age.
	past := time.Now().Add(-cfg.PendingMaxAge - time.Minute)
	r.now = func() time.Time { return past }
	r.Create(context.Background(), "203.0.113.1", "agent-a")
	r.now = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewSweeper(r).Run(ctx)

	deadline := time.Now().Add(time.Second)
	for {
		if _, p := r.Counts(); p == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("sweeper never expired the stale pending session")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	r := NewRegistry(cfg, testStages(), DefaultSettings(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(r).Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
