package progress

import (
	"encoding/json"
	"sort"

	"hexentour/pkg/station"
)

// Screen is the visitor-facing screen the tour is on.
type Screen string

const (
	ScreenStart   Screen = "start"
	ScreenWelcome Screen = "welcome"
	ScreenMap     Screen = "map"
	ScreenQR      Screen = "qr"
	ScreenStation Screen = "station"
	ScreenInfo    Screen = "info"
)

// Screens lists every known screen.
var Screens = []Screen{ScreenStart, ScreenWelcome, ScreenMap, ScreenQR, ScreenStation, ScreenInfo}

// Valid reports whether s is a known screen.
func (s Screen) Valid() bool {
	for _, k := range Screens {
		if s == k {
			return true
		}
	}
	return false
}

// State is the persisted tour progress.
type State struct {
	Screen           Screen              `json:"screen"`
	Unlocked         bool                `json:"unlocked"`
	CurrentStationID station.ID          `json:"currentStationId"`
	UnlockedStations []station.ID        `json:"unlockedStations"`
	Completed        map[station.ID]bool `json:"completed"`
}

// Defaults returns the state of a fresh visitor.
func Defaults() State {
	return State{
		Screen:           ScreenStart,
		CurrentStationID: station.Start,
		UnlockedStations: []station.ID{},
		Completed:        map[station.ID]bool{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.UnlockedStations = append([]station.ID{}, s.UnlockedStations...)
	out.Completed = make(map[station.ID]bool, len(s.Completed))
	for k, v := range s.Completed {
		out.Completed[k] = v
	}
	return out
}

// IsUnlocked reports whether id is in the unlocked set.
func (s State) IsUnlocked(id station.ID) bool {
	for _, u := range s.UnlockedStations {
		if u == id {
			return true
		}
	}
	return false
}

// Key is a canonical encoding of the persisted fields. Two states with the
// same key persist identically.
func (s State) Key() string {
	c := s.Clone()
	sortIDs(c.UnlockedStations)
	// encoding/json sorts map keys
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

func sortIDs(ids []station.ID) {
	sort.SliceStable(ids, func(i, j int) bool { return ids[i].Number() < ids[j].Number() })
}
