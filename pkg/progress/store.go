package progress

import (
	"log/slog"
	"sync"

	"hexentour/pkg/event"
	"hexentour/pkg/station"
)

// Store owns the tour progress. All mutation goes through its methods and
// every mutation notifies subscribers with the resulting state.
type Store struct {
	mu      sync.RWMutex
	catalog *station.Catalog
	state   State
	changes event.Bus[State]
}

// NewStore creates a store at default state.
func NewStore(catalog *station.Catalog) *Store {
	return &Store{
		catalog: catalog,
		state:   Defaults(),
	}
}

// Catalog returns the station catalog the store was built with.
func (s *Store) Catalog() *station.Catalog {
	return s.catalog
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// PersistKey returns the canonical key of the current state.
func (s *Store) PersistKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Key()
}

// Subscribe registers fn to be called after every mutation.
func (s *Store) Subscribe(fn func(State)) event.Unsubscribe {
	return s.changes.Subscribe(fn)
}

// update applies fn under the write lock and notifies outside of it.
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.Clone()
	s.mu.Unlock()

	s.changes.Publish(snap)
}

// Hydrate replaces the state wholesale. Used once after loading from storage.
func (s *Store) Hydrate(st State) {
	st = st.Clone()
	if st.Completed == nil {
		st.Completed = map[station.ID]bool{}
	}
	sortIDs(st.UnlockedStations)
	s.update(func(cur *State) { *cur = st })
}

// Reset returns to defaults.
func (s *Store) Reset() {
	s.update(func(st *State) { *st = Defaults() })
}

// SetScreen sets the screen. Unknown screens are ignored.
func (s *Store) SetScreen(screen Screen) {
	if !screen.Valid() {
		slog.Warn("Progress: Ignoring unknown screen", "screen", screen)
		return
	}
	s.update(func(st *State) { st.Screen = screen })
}

// UnlockTour marks the tour as unlocked and seeds the first station.
func (s *Store) UnlockTour() {
	s.update(s.unlockTour)
}

func (s *Store) unlockTour(st *State) {
	st.Unlocked = true
	unlock(st, s.catalog.First())
}

// UnlockStation adds id to the unlocked set. Ids outside the catalog are
// silently ignored.
func (s *Store) UnlockStation(id station.ID) {
	if !s.catalog.Has(id) {
		return
	}
	s.update(func(st *State) { unlock(st, id) })
}

func unlock(st *State, id station.ID) {
	if id == station.Start || st.IsUnlocked(id) {
		return
	}
	st.UnlockedStations = append(st.UnlockedStations, id)
	sortIDs(st.UnlockedStations)
}

// SetCurrentStation moves the position marker and unlocks the station.
func (s *Store) SetCurrentStation(id station.ID) {
	if id != station.Start && !s.catalog.Has(id) {
		slog.Warn("Progress: Ignoring unknown station", "id", id)
		return
	}
	s.update(func(st *State) {
		st.CurrentStationID = id
		unlock(st, id)
	})
}

// StartStation opens the station screen for id, or for the current station
// when id is empty.
func (s *Store) StartStation(id station.ID) {
	if id != "" && id != station.Start && !s.catalog.Has(id) {
		slog.Warn("Progress: Ignoring unknown station", "id", id)
		return
	}
	s.update(func(st *State) {
		if id == "" {
			id = st.CurrentStationID
		}
		st.CurrentStationID = id
		st.Screen = ScreenStation
		unlock(st, id)
	})
}

// CompleteCurrentAndAdvance marks the current station completed, moves to
// the next catalog entry (clamped at the last one) and returns to the map.
func (s *Store) CompleteCurrentAndAdvance() {
	s.update(func(st *State) {
		cur := st.CurrentStationID
		if cur != station.Start {
			st.Completed[cur] = true
		}
		next := s.catalog.Advance(cur, 1)
		st.CurrentStationID = next
		unlock(st, next)
		st.Screen = ScreenMap
	})
}

// CompleteCurrent marks the current station completed and returns to the
// map without moving the position marker.
func (s *Store) CompleteCurrent() {
	s.update(func(st *State) {
		if st.CurrentStationID != station.Start {
			st.Completed[st.CurrentStationID] = true
		}
		st.Screen = ScreenMap
	})
}

// GoToWelcome shows the intro. Reaching the welcome screen also unlocks
// the tour.
func (s *Store) GoToWelcome() {
	s.update(func(st *State) {
		st.Screen = ScreenWelcome
		s.unlockTour(st)
	})
}

// GoToMap shows the map.
func (s *Store) GoToMap() { s.SetScreen(ScreenMap) }

// GoToQR shows the scanner.
func (s *Store) GoToQR() { s.SetScreen(ScreenQR) }

// OpenInfo shows the info dialog of the current station.
func (s *Store) OpenInfo() { s.SetScreen(ScreenInfo) }

// CloseInfo returns from the info dialog to the station.
func (s *Store) CloseInfo() { s.SetScreen(ScreenStation) }
