package geo

import (
	"github.com/paulmach/orb/geojson"

	"hexentour/pkg/station"
)

// StationStatus labels a station on the map.
type StationStatus string

const (
	StatusLocked    StationStatus = "locked"
	StatusUnlocked  StationStatus = "unlocked"
	StatusCurrent   StationStatus = "current"
	StatusTarget    StationStatus = "target"
	StatusCompleted StationStatus = "completed"
)

// StationFeatures returns a point feature for every station with a location.
func StationFeatures(cat *station.Catalog, status func(station.ID) StationStatus) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, st := range cat.Stations() {
		if st.Location == nil {
			continue
		}
		f := geojson.NewFeature(Point(*st.Location))
		f.ID = string(st.ID)
		f.Properties["id"] = string(st.ID)
		f.Properties["title"] = st.Title
		f.Properties["unlock"] = string(st.Unlock)
		if status != nil {
			f.Properties["status"] = string(status(st.ID))
		}
		fc.Append(f)
	}
	return fc
}
