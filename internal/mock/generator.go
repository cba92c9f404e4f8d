// Package mock drives the registry with scripted synthetic visitors so
// the observer surface can be exercised without real traffic.
package mock

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/sessiongate/backend/internal/session"
)

type stageStep struct {
	at    int // tick on which the visitor requests this stage
	stage string
}

type visitor struct {
	address  string
	identity string
	startAt  int
	verifyAt int // tick of successful challenge verification (0 = never)
	leaveAt  int // tick of disconnect (0 = stays until cleared)
	steps    []stageStep

	id      string
	started bool
	left    bool
}

// Generator replays a fixed cast of visitors against the registry: some
// verify and walk the stage sequence, one stays pending until the
// sweeper expires it, one disconnects mid-transition to exercise the
// grace window.
type Generator struct {
	reg      *session.Registry
	visitors []*visitor
}

func NewGenerator(reg *session.Registry) *Generator {
	return &Generator{reg: reg}
}

func (g *Generator) Start(ctx context.Context) {
	g.visitors = []*visitor{
		{
			address: "203.0.113.10", identity: "Mozilla/5.0 (Macintosh) mock-visitor-a",
			startAt: 1, verifyAt: 4,
			steps: []stageStep{{8, "Review"}, {15, "Confirm"}, {22, "Complete"}},
		},
		{
			address: "198.51.100.7", identity: "Mozilla/5.0 (Windows NT 10.0) mock-visitor-b",
			startAt: 3, verifyAt: 7, leaveAt: 18,
			steps: []stageStep{{11, "Review"}},
		},
		{
			address: "192.0.2.44", identity: "Mozilla/5.0 (X11; Linux) mock-visitor-c",
			startAt: 5, verifyAt: 0, // never verifies, expires as pending
		},
		{
			address: "203.0.113.99", identity: "Mozilla/5.0 (iPhone) mock-visitor-d",
			startAt: 6, verifyAt: 10,
			steps: []stageStep{{14, "Review"}},
		},
	}

	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	log.Println("mock: generating synthetic visitor traffic")
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			for _, v := range g.visitors {
				g.step(ctx, v, tick)
			}
		}
	}
}

func (g *Generator) step(ctx context.Context, v *visitor, tick int) {
	if tick < v.startAt || v.left {
		return
	}

	if !v.started {
		sess, _ := g.reg.Create(ctx, v.address, v.identity)
		if sess == nil {
			v.left = true
			return
		}
		v.id = sess.ID
		v.started = true
		g.annotate(v)
		return
	}

	if v.verifyAt > 0 && tick == v.verifyAt {
		g.reg.Promote(v.id)
		return
	}

	for _, step := range v.steps {
		if step.at == tick {
			g.reg.BeginTransition(v.id)
			if _, _, err := g.reg.UpdateStage(v.id, step.stage); err != nil {
				log.Printf("mock: visitor %s stage %q: %v", v.id, step.stage, err)
			}
			g.reg.EndTransition(v.id)
			return
		}
	}

	if v.leaveAt > 0 && tick == v.leaveAt {
		g.reg.Disconnect(v.id)
		v.left = true
		return
	}

	// Background liveness, with occasional extra activity.
	g.reg.Heartbeat(v.id)
	if rand.Intn(4) == 0 {
		g.reg.Activity(v.id)
	}
}

var mockLocations = [][3]string{
	{"US", "Portland", "Oregon"},
	{"DE", "Berlin", "Berlin"},
	{"JP", "Osaka", "Kansai"},
	{"BR", "Recife", "Pernambuco"},
}

func (g *Generator) annotate(v *visitor) {
	loc := mockLocations[rand.Intn(len(mockLocations))]
	g.reg.SetAnnotations(v.id, map[string]string{
		"ip":      v.address,
		"country": loc[0],
		"city":    loc[1],
		"region":  loc[2],
	})
}
