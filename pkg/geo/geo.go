// Package geo decides GPS arrivals at tour stations.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"hexentour/pkg/station"
)

// DefaultArrivalRadius is the distance in meters that counts as arrived.
const DefaultArrivalRadius = 25.0

var (
	// ErrNoLocation means the station cannot be reached by GPS.
	ErrNoLocation = errors.New("station has no gps location")
	// ErrOutsideArea means the fix lies outside the tour area.
	ErrOutsideArea = errors.New("position outside tour area")
)

// Point converts a catalog location to an orb point (lon, lat order).
func Point(l station.Location) orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b station.Location) float64 {
	return geo.Distance(Point(a), Point(b))
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b station.Location) float64 {
	brng := geo.Bearing(Point(a), Point(b))
	if brng < 0 {
		brng += 360
	}
	return brng
}

// Arrival is the outcome of one position check.
type Arrival struct {
	StationID station.ID `json:"stationId"`
	Distance  float64    `json:"distance"`
	Bearing   float64    `json:"bearing"`
	Reached   bool       `json:"reached"`
}

// ArrivalChecker compares visitor positions with station locations.
type ArrivalChecker struct {
	catalog *station.Catalog
	radius  float64
	area    *Area
}

// NewArrivalChecker creates a checker. radius <= 0 uses
// DefaultArrivalRadius; a nil area accepts every position.
func NewArrivalChecker(cat *station.Catalog, radius float64, area *Area) *ArrivalChecker {
	if radius <= 0 {
		radius = DefaultArrivalRadius
	}
	return &ArrivalChecker{catalog: cat, radius: radius, area: area}
}

// Radius returns the arrival radius in meters.
func (c *ArrivalChecker) Radius() float64 { return c.radius }

// Check measures pos against the expected station.
func (c *ArrivalChecker) Check(expected station.ID, pos station.Location) (Arrival, error) {
	return c.CheckWithin(expected, pos, c.radius)
}

// CheckWithin is Check with a caller-supplied radius; radius <= 0 falls
// back to the checker's own.
func (c *ArrivalChecker) CheckWithin(expected station.ID, pos station.Location, radius float64) (Arrival, error) {
	if radius <= 0 {
		radius = c.radius
	}
	st, err := c.catalog.Lookup(expected)
	if err != nil {
		return Arrival{}, err
	}
	if !st.AllowsGPS() || st.Location == nil {
		return Arrival{}, fmt.Errorf("%w: %s", ErrNoLocation, expected)
	}
	if c.area != nil && !c.area.Contains(pos) {
		return Arrival{}, ErrOutsideArea
	}
	d := Distance(pos, *st.Location)
	return Arrival{
		StationID: expected,
		Distance:  d,
		Bearing:   Bearing(pos, *st.Location),
		Reached:   d <= radius,
	}, nil
}
