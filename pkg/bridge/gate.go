package bridge

import (
	"sync"
	"time"

	"hexentour/pkg/event"
)

// Gate reasons.
const (
	OpenedReady   = "ready"
	OpenedTimeout = "timeout"
)

// Gate opens when the AR surface signals readiness or, failing that, after
// a fixed timeout so the visitor is never stuck on a loading screen.
type Gate struct {
	timeout time.Duration

	mu     sync.Mutex
	open   bool
	reason string
	timer  *time.Timer
	epoch  int
	opened event.Bus[string]
}

// NewGate creates a closed, unarmed gate.
func NewGate(timeout time.Duration) *Gate {
	return &Gate{timeout: timeout}
}

// Arm closes the gate and starts the fallback timer.
func (g *Gate) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.open = false
	g.reason = ""
	g.epoch++
	epoch := g.epoch
	g.timer = time.AfterFunc(g.timeout, func() { g.openWith(epoch, OpenedTimeout) })
}

// Signal opens the gate because the surface is ready.
func (g *Gate) Signal() {
	g.mu.Lock()
	epoch := g.epoch
	g.mu.Unlock()
	g.openWith(epoch, OpenedReady)
}

func (g *Gate) openWith(epoch int, reason string) {
	g.mu.Lock()
	if g.open || epoch != g.epoch {
		g.mu.Unlock()
		return
	}
	g.open = true
	g.reason = reason
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.mu.Unlock()

	g.opened.Publish(reason)
}

// Open reports whether the gate is open and why.
func (g *Gate) Open() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, g.reason
}

// OnOpen registers fn to run each time the gate opens.
func (g *Gate) OnOpen(fn func(reason string)) event.Unsubscribe {
	return g.opened.Subscribe(fn)
}

// Stop cancels a pending fallback.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.epoch++
}
