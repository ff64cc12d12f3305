// Package persist round-trips tour progress through a key/value state store.
package persist

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"hexentour/pkg/metrics"
	"hexentour/pkg/progress"
	"hexentour/pkg/station"
	"hexentour/pkg/store"
)

// DefaultKey is the storage key of the progress record.
const DefaultKey = "hexentanzplatz_progress_v1"

// Adapter persists and restores progress. Storage failures are logged and
// swallowed; losing persistence must never break the tour.
type Adapter struct {
	st      store.StateStore
	catalog *station.Catalog
	key     string
	metrics *metrics.Metrics
}

// NewAdapter creates an adapter writing under key.
func NewAdapter(st store.StateStore, catalog *station.Catalog, key string, m *metrics.Metrics) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	return &Adapter{st: st, catalog: catalog, key: key, metrics: m}
}

// Key returns the storage key.
func (a *Adapter) Key() string {
	return a.key
}

// Persist writes the persisted subset of s.
func (a *Adapter) Persist(ctx context.Context, s progress.State) {
	data, err := json.Marshal(s.Clone())
	if err != nil {
		slog.Warn("Persist: Failed to encode progress", "error", err)
		a.metrics.PersistWrite(false)
		return
	}
	if err := a.st.SetState(ctx, a.key, string(data)); err != nil {
		slog.Warn("Persist: Failed to write progress", "key", a.key, "error", err)
		a.metrics.PersistWrite(false)
		return
	}
	a.metrics.PersistWrite(true)
}

// Load reads and validates the stored progress. It returns false when
// nothing is stored or the value is not a JSON object. Individual fields
// that fail validation fall back to their defaults.
func (a *Adapter) Load(ctx context.Context) (progress.State, bool) {
	raw, found := a.st.GetState(ctx, a.key)
	if !found || raw == "" {
		return progress.State{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		slog.Warn("Persist: Ignoring unreadable progress", "key", a.key, "error", err)
		return progress.State{}, false
	}

	st := progress.Defaults()
	st.Screen = a.screen(fields["screen"])
	st.Unlocked = truthy(fields["unlocked"])
	st.CurrentStationID = a.current(fields["currentStationId"])
	st.UnlockedStations = a.unlocked(fields["unlockedStations"])
	st.Completed = completed(fields["completed"])
	return st, true
}

// Clear removes the stored progress.
func (a *Adapter) Clear(ctx context.Context) {
	if err := a.st.DeleteState(ctx, a.key); err != nil {
		slog.Warn("Persist: Failed to clear progress", "key", a.key, "error", err)
	}
}

func (a *Adapter) screen(raw json.RawMessage) progress.Screen {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !progress.Screen(s).Valid() {
		return progress.ScreenStart
	}
	return progress.Screen(s)
}

func (a *Adapter) current(raw json.RawMessage) station.ID {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		id := station.ID(s)
		if id == station.Start || a.acceptable(id) {
			return id
		}
	}
	return a.catalog.First()
}

func (a *Adapter) acceptable(id station.ID) bool {
	return id.Valid() && a.catalog.InRange(id)
}

func (a *Adapter) unlocked(raw json.RawMessage) []station.ID {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []station.ID{}
	}
	ids := lo.FilterMap(items, func(item json.RawMessage, _ int) (station.ID, bool) {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return "", false
		}
		return station.ID(s), a.acceptable(station.ID(s))
	})
	ids = lo.Uniq(ids)
	sort.SliceStable(ids, func(i, j int) bool { return ids[i].Number() < ids[j].Number() })
	return ids
}

func completed(raw json.RawMessage) map[station.ID]bool {
	out := map[station.ID]bool{}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return out
	}
	for k, v := range entries {
		if truthy(v) {
			out[station.ID(k)] = true
		}
	}
	return out
}

// truthy mirrors loose boolean coercion of a stored JSON value.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
