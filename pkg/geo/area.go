package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"hexentour/pkg/station"
)

// Area is the walkable tour area. Fixes outside it are treated as GPS
// jumps and ignored.
type Area struct {
	polygons []orb.Polygon
	bound    orb.Bound
}

// NewArea builds an area from polygons.
func NewArea(polys ...orb.Polygon) *Area {
	a := &Area{polygons: polys}
	for i, p := range polys {
		if i == 0 {
			a.bound = p.Bound()
			continue
		}
		a.bound = a.bound.Union(p.Bound())
	}
	return a
}

// LoadArea reads every Polygon and MultiPolygon feature of a GeoJSON file.
func LoadArea(path string) (*Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read area %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse area %s: %w", path, err)
	}

	var polys []orb.Polygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		}
	}
	if len(polys) == 0 {
		return nil, fmt.Errorf("area %s has no polygons", path)
	}
	return NewArea(polys...), nil
}

// Contains reports whether pos lies inside the area.
func (a *Area) Contains(pos station.Location) bool {
	pt := Point(pos)
	if !a.bound.Contains(pt) {
		return false
	}
	for _, p := range a.polygons {
		if planar.PolygonContains(p, pt) {
			return true
		}
	}
	return false
}
