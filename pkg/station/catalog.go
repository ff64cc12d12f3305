package station

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed stations.yaml
var defaultCatalog []byte

// Variant selects the station screen layout.
type Variant string

const (
	VariantV1 Variant = "v1"
	VariantV2 Variant = "v2" // v2 stations offer an info dialog
)

// UnlockMethod describes how arrival at a station is detected.
type UnlockMethod string

const (
	UnlockGPS     UnlockMethod = "gps"
	UnlockQR      UnlockMethod = "qr"
	UnlockGPSOrQR UnlockMethod = "gps_or_qr"
)

// Tracking types.
const (
	TrackingWorldOnly       = "world_only"
	TrackingMarkerThenWorld = "marker_then_world"
)

// TrackingPlan tells the AR surface how to anchor its content.
type TrackingPlan struct {
	Type     string `yaml:"type" json:"type"`
	MarkerID string `yaml:"marker_id,omitempty" json:"markerId,omitempty"`
}

// InfoKind is the type of an info item.
type InfoKind string

const (
	InfoText  InfoKind = "text"
	InfoImage InfoKind = "image"
	InfoAudio InfoKind = "audio"
)

// InfoItem is one entry of a station's "learn more" dialog.
type InfoItem struct {
	Kind       InfoKind `yaml:"type" json:"type"`
	Title      string   `yaml:"title" json:"title"`
	Body       string   `yaml:"body,omitempty" json:"body,omitempty"`
	Src        string   `yaml:"src,omitempty" json:"src,omitempty"`
	Caption    string   `yaml:"caption,omitempty" json:"caption,omitempty"`
	Transcript string   `yaml:"transcript,omitempty" json:"transcript,omitempty"`
}

// Action is an exit button on the station screen. AdvanceBy is 1 (go to
// the next station) or 2 (skip the following one).
type Action struct {
	Label     string `yaml:"label" json:"label"`
	AdvanceBy int    `yaml:"advance_by" json:"advanceBy"`
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// DualModel assigns dialog speakers to the two AR models.
type DualModel struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary" json:"secondary"`
}

// Station is a single stop on the tour.
type Station struct {
	ID             ID           `yaml:"id" json:"id"`
	Title          string       `yaml:"title" json:"title"`
	Variant        Variant      `yaml:"variant" json:"variant"`
	Unlock         UnlockMethod `yaml:"unlock" json:"unlock"`
	Tracking       TrackingPlan `yaml:"tracking" json:"tracking"`
	DialogAudio    string       `yaml:"dialog_audio" json:"dialogAudio"`
	DialogContent  string       `yaml:"dialog_content,omitempty" json:"dialogContent,omitempty"`
	SpecialActions []Action     `yaml:"special_actions,omitempty" json:"specialActions,omitempty"`
	Info           []InfoItem   `yaml:"info,omitempty" json:"info,omitempty"`
	Location       *Location    `yaml:"location,omitempty" json:"location,omitempty"`
	DualModel      *DualModel   `yaml:"dual_model,omitempty" json:"dualModel,omitempty"`
}

// AllowsGPS reports whether the station can be unlocked by position.
func (s Station) AllowsGPS() bool {
	return s.Unlock == UnlockGPS || s.Unlock == UnlockGPSOrQR
}

// AllowsQR reports whether the station can be unlocked by scanning.
func (s Station) AllowsQR() bool {
	return s.Unlock == UnlockQR || s.Unlock == UnlockGPSOrQR
}

// Actions returns the exit buttons, falling back to a single "Weiter"
// action when the catalog defines none.
func (s Station) Actions() []Action {
	if len(s.SpecialActions) == 0 {
		return []Action{{Label: "Weiter", AdvanceBy: 1}}
	}
	out := make([]Action, len(s.SpecialActions))
	copy(out, s.SpecialActions)
	return out
}

type catalogFile struct {
	Stations []Station `yaml:"stations"`
}

// Catalog is the immutable, number-ordered list of stations.
type Catalog struct {
	stations []Station
	index    map[ID]int
}

// New validates stations and returns them sorted by number.
func New(stations []Station) (*Catalog, error) {
	if len(stations) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	sorted := make([]Station, len(stations))
	copy(sorted, stations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID.Number() < sorted[j].ID.Number()
	})

	c := &Catalog{stations: sorted, index: make(map[ID]int, len(sorted))}
	for i, s := range sorted {
		if err := validate(s); err != nil {
			return nil, err
		}
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station %s", s.ID)
		}
		c.index[s.ID] = i
	}
	return c, nil
}

func validate(s Station) error {
	if !s.ID.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidID, s.ID)
	}
	switch s.Variant {
	case VariantV1, VariantV2:
	default:
		return fmt.Errorf("station %s: unknown variant %q", s.ID, s.Variant)
	}
	switch s.Unlock {
	case UnlockGPS, UnlockQR, UnlockGPSOrQR:
	default:
		return fmt.Errorf("station %s: unknown unlock method %q", s.ID, s.Unlock)
	}
	switch s.Tracking.Type {
	case TrackingWorldOnly:
	case TrackingMarkerThenWorld:
		if s.Tracking.MarkerID == "" {
			return fmt.Errorf("station %s: marker tracking without marker id", s.ID)
		}
	default:
		return fmt.Errorf("station %s: unknown tracking type %q", s.ID, s.Tracking.Type)
	}
	for _, a := range s.SpecialActions {
		if a.AdvanceBy != 1 && a.AdvanceBy != 2 {
			return fmt.Errorf("station %s: action %q advances by %d", s.ID, a.Label, a.AdvanceBy)
		}
	}
	if s.DualModel != nil && (s.DualModel.Primary == "" || s.DualModel.Secondary == "") {
		return fmt.Errorf("station %s: dual model needs both speakers", s.ID)
	}
	return nil
}

// ParseYAML decodes a yaml catalog document.
func ParseYAML(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Stations)
}

// Load reads a catalog from a yaml file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseYAML(data)
}

// Default returns the built-in Hexentanzplatz catalog.
func Default() *Catalog {
	c, err := ParseYAML(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Stations returns a copy of all stations in order.
func (c *Catalog) Stations() []Station {
	out := make([]Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// Len returns the number of stations.
func (c *Catalog) Len() int {
	return len(c.stations)
}

// Get looks up a station by id.
func (c *Catalog) Get(id ID) (Station, bool) {
	i, ok := c.index[id]
	if !ok {
		return Station{}, false
	}
	return c.stations[i], true
}

// Lookup is Get with an error for unknown ids.
func (c *Catalog) Lookup(id ID) (Station, error) {
	s, ok := c.Get(id)
	if !ok {
		return Station{}, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	return s, nil
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id ID) bool {
	_, ok := c.index[id]
	return ok
}

// First returns the first station id.
func (c *Catalog) First() ID {
	return c.stations[0].ID
}

// Last returns the last station id.
func (c *Catalog) Last() ID {
	return c.stations[len(c.stations)-1].ID
}

// IndexOf returns the position of id, or -1.
func (c *Catalog) IndexOf(id ID) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Next returns the station after id. Unknown ids (including Start) yield
// the first station; the last station yields itself.
func (c *Catalog) Next(id ID) ID {
	i := c.IndexOf(id) + 1
	if i >= len(c.stations) {
		i = len(c.stations) - 1
	}
	return c.stations[i].ID
}

// Advance moves n steps forward from id, clamped to the last station.
func (c *Catalog) Advance(id ID, n int) ID {
	for ; n > 0; n-- {
		id = c.Next(id)
	}
	return id
}

// InRange reports whether id's number lies within the catalog's first and
// last station numbers.
func (c *Catalog) InRange(id ID) bool {
	n := id.Number()
	return id.Valid() && n >= c.First().Number() && n <= c.Last().Number()
}
