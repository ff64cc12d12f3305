package screen

import (
	"log/slog"
	"sync"
	"time"

	"hexentour/pkg/event"
	"hexentour/pkg/progress"
)

// DefaultSyncDelay lets hydration finish before the first route commit.
const DefaultSyncDelay = 150 * time.Millisecond

// Router moves the visitor page to a path.
type Router interface {
	Navigate(path string)
}

// Navigator keeps the visitor page on the route matching progress.
type Navigator struct {
	store  *progress.Store
	router Router
	delay  time.Duration

	once  sync.Once
	mu    sync.Mutex
	timer *time.Timer
	// synced is set once the initial route has been committed.
	synced bool
	last   string
	unsub  event.Unsubscribe
}

// NewNavigator creates a navigator. delay <= 0 uses DefaultSyncDelay.
func NewNavigator(store *progress.Store, router Router, delay time.Duration) *Navigator {
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	return &Navigator{store: store, router: router, delay: delay}
}

// InitialSync schedules the one-time route commit. Only the first call in
// the navigator's lifetime has any effect.
func (n *Navigator) InitialSync() {
	n.once.Do(func() {
		n.mu.Lock()
		n.timer = time.AfterFunc(n.delay, n.commit)
		n.mu.Unlock()
	})
}

func (n *Navigator) commit() {
	path := For(n.store.Catalog(), n.store.Snapshot()).Path()
	n.mu.Lock()
	n.synced = true
	changed := path != n.last
	n.last = path
	n.mu.Unlock()

	slog.Debug("Screen: Initial route", "path", path)
	if changed {
		n.router.Navigate(path)
	}
}

// Synced reports whether the initial commit has happened.
func (n *Navigator) Synced() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.synced
}

// Follow navigates on every progress change after the initial sync.
func (n *Navigator) Follow() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unsub != nil {
		return
	}
	n.unsub = n.store.Subscribe(n.onChange)
}

func (n *Navigator) onChange(st progress.State) {
	path := For(n.store.Catalog(), st).Path()
	n.mu.Lock()
	if !n.synced || path == n.last {
		n.mu.Unlock()
		return
	}
	n.last = path
	n.mu.Unlock()
	n.router.Navigate(path)
}

// Go navigates to path directly, e.g. to the arrived page after a scan.
func (n *Navigator) Go(path string) {
	n.mu.Lock()
	n.last = path
	n.mu.Unlock()
	n.router.Navigate(path)
}

// Visited records that the page is already showing path.
func (n *Navigator) Visited(path string) {
	n.mu.Lock()
	n.last = path
	n.mu.Unlock()
}

// Current returns the last committed path.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Stop cancels a pending sync and stops following.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	if n.unsub != nil {
		n.unsub()
		n.unsub = nil
	}
}
