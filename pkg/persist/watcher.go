package persist

import (
	"context"
	"log/slog"
	"sync"

	"hexentour/pkg/event"
	"hexentour/pkg/progress"
)

// Watcher writes progress back to storage whenever its persist key changes.
type Watcher struct {
	adapter *Adapter
	store   *progress.Store

	mu      sync.Mutex
	lastKey string
	unsub   event.Unsubscribe
}

// NewWatcher creates a watcher for store.
func NewWatcher(adapter *Adapter, store *progress.Store) *Watcher {
	return &Watcher{adapter: adapter, store: store}
}

// Hydrate loads stored progress into the store. It returns false when
// nothing valid was stored and defaults stay in place.
func Hydrate(ctx context.Context, adapter *Adapter, store *progress.Store) bool {
	st, ok := adapter.Load(ctx)
	if !ok {
		slog.Info("Persist: No stored progress, starting fresh")
		return false
	}
	store.Hydrate(st)
	slog.Info("Persist: Restored progress", "screen", st.Screen, "current", st.CurrentStationID, "unlocked", len(st.UnlockedStations))
	return true
}

// Start writes the current state once and then follows every change.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.unsub != nil {
		w.mu.Unlock()
		return
	}
	w.unsub = w.store.Subscribe(func(progress.State) { w.sync(ctx) })
	w.mu.Unlock()

	w.sync(ctx)
}

// Stop detaches from the store.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
}

// sync re-reads the store rather than trusting the notified value so that
// out-of-order notifications never leave a stale record behind.
func (w *Watcher) sync(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := w.store.Snapshot()
	key := snap.Key()
	if key == w.lastKey {
		return
	}
	w.adapter.Persist(ctx, snap)
	w.lastKey = key
}
