package geo

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hexentour/pkg/station"
)

var s02 = station.Location{Lat: 51.73138, Lon: 11.02051}

func TestDistanceAndBearing(t *testing.T) {
	north := station.Location{Lat: s02.Lat + 0.001, Lon: s02.Lon}
	if d := Distance(s02, north); math.Abs(d-111.2) > 1 {
		t.Errorf("Distance = %.1f, want ~111.2", d)
	}
	if b := Bearing(s02, north); math.Abs(b) > 0.5 && math.Abs(b-360) > 0.5 {
		t.Errorf("Bearing north = %.1f", b)
	}
	west := station.Location{Lat: s02.Lat, Lon: s02.Lon - 0.001}
	if b := Bearing(s02, west); math.Abs(b-270) > 0.5 {
		t.Errorf("Bearing west = %.1f, want ~270", b)
	}
}

func TestArrivalChecker(t *testing.T) {
	c := NewArrivalChecker(station.Default(), 0, nil)
	assert.Equal(t, DefaultArrivalRadius, c.Radius())

	tests := []struct {
		name    string
		pos     station.Location
		reached bool
	}{
		{"on the spot", s02, true},
		{"eleven meters away", station.Location{Lat: s02.Lat + 0.0001, Lon: s02.Lon}, true},
		{"a hundred meters away", station.Location{Lat: s02.Lat + 0.001, Lon: s02.Lon}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := c.Check("s02", tt.pos)
			require.NoError(t, err)
			assert.Equal(t, tt.reached, a.Reached)
			assert.Equal(t, station.ID("s02"), a.StationID)
		})
	}
}

func TestArrivalChecker_Errors(t *testing.T) {
	c := NewArrivalChecker(station.Default(), 25, nil)

	_, err := c.Check("s01", s02)
	assert.ErrorIs(t, err, ErrNoLocation, "s01 is qr only")

	_, err = c.Check("s99", s02)
	assert.ErrorIs(t, err, station.ErrUnknownStation)
}

func square(lat, lon, half float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{lon - half, lat - half},
		{lon + half, lat - half},
		{lon + half, lat + half},
		{lon - half, lat + half},
		{lon - half, lat - half},
	}}
}

func TestArea(t *testing.T) {
	area := NewArea(square(s02.Lat, s02.Lon, 0.01))
	assert.True(t, area.Contains(s02))
	assert.False(t, area.Contains(station.Location{Lat: 52.5, Lon: 13.4}))

	c := NewArrivalChecker(station.Default(), 25, area)
	_, err := c.Check("s02", station.Location{Lat: 52.5, Lon: 13.4})
	assert.ErrorIs(t, err, ErrOutsideArea)
}

func TestLoadArea(t *testing.T) {
	path := filepath.Join(t.TempDir(), "area.geojson")
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
"geometry":{"type":"Polygon","coordinates":[[[11.0,51.7],[11.1,51.7],[11.1,51.8],[11.0,51.8],[11.0,51.7]]]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	area, err := LoadArea(path)
	require.NoError(t, err)
	assert.True(t, area.Contains(s02))

	empty := filepath.Join(t.TempDir(), "empty.geojson")
	require.NoError(t, os.WriteFile(empty, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	_, err = LoadArea(empty)
	assert.Error(t, err)
}

func TestStationFeatures(t *testing.T) {
	cat := station.Default()
	fc := StationFeatures(cat, func(id station.ID) StationStatus {
		if id == "s02" {
			return StatusTarget
		}
		return StatusLocked
	})

	var ids []string
	for _, f := range fc.Features {
		ids = append(ids, f.Properties.MustString("id"))
		if f.Properties.MustString("id") == "s02" {
			assert.Equal(t, "target", f.Properties.MustString("status"))
			assert.Equal(t, orb.Point{s02.Lon, s02.Lat}, f.Geometry)
		}
	}
	assert.Contains(t, ids, "s02")
	assert.NotContains(t, ids, "s01")
}

func TestTrackBuffer(t *testing.T) {
	b := NewTrackBuffer(2)
	got := b.Push(station.Location{Lat: 10, Lon: 20})
	assert.Equal(t, station.Location{Lat: 10, Lon: 20}, got)

	got = b.Push(station.Location{Lat: 12, Lon: 22})
	assert.Equal(t, station.Location{Lat: 11, Lon: 21}, got)

	got = b.Push(station.Location{Lat: 14, Lon: 24})
	assert.Equal(t, station.Location{Lat: 13, Lon: 23}, got)

	b.Reset()
	got = b.Push(station.Location{Lat: 1, Lon: 2})
	assert.Equal(t, station.Location{Lat: 1, Lon: 2}, got)
}
