package geo

import (
	"sync"

	"hexentour/pkg/station"
)

// TrackBuffer averages the last few GPS fixes to damp jitter.
type TrackBuffer struct {
	mu         sync.Mutex
	samples    []station.Location
	windowSize int
}

// NewTrackBuffer creates a buffer with the given window size.
func NewTrackBuffer(windowSize int) *TrackBuffer {
	if windowSize < 1 {
		windowSize = 1
	}
	return &TrackBuffer{windowSize: windowSize}
}

// Push adds a fix and returns the mean of the window.
func (b *TrackBuffer) Push(p station.Location) station.Location {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, p)
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[1:]
	}

	var lat, lon float64
	for _, s := range b.samples {
		lat += s.Lat
		lon += s.Lon
	}
	n := float64(len(b.samples))
	return station.Location{Lat: lat / n, Lon: lon / n}
}

// Reset clears the buffer history.
func (b *TrackBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
