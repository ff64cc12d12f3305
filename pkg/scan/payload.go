// Package scan turns decoded QR text into validated station arrivals.
package scan

import (
	"net/url"
	"regexp"
	"strings"

	"hexentour/pkg/station"
)

// UnlockTourPayload is printed on the entrance QR code.
const UnlockTourPayload = "unlock-tour"

var stationParam = regexp.MustCompile(`station=([^&#\s]+)`)

// Kind says what a payload asks for.
type Kind int

const (
	// KindStation is a station arrival candidate.
	KindStation Kind = iota
	// KindUnlockTour unlocks the tour.
	KindUnlockTour
)

// Payload is decoded QR text after interpretation.
type Payload struct {
	Kind      Kind
	StationID station.ID
	Raw       string
}

// ParsePayload accepts a bare station id, any text carrying a
// "station=<id>" parameter, or the unlock payload. Other text is returned
// as a station candidate so validation can reject it.
func ParsePayload(raw string) Payload {
	p := strings.TrimSpace(raw)
	if p == "" || p == UnlockTourPayload {
		return Payload{Kind: KindUnlockTour, Raw: raw}
	}
	if station.Valid(p) {
		return Payload{Kind: KindStation, StationID: station.ID(p), Raw: raw}
	}
	if m := stationParam.FindStringSubmatch(p); m != nil {
		id := m[1]
		if unescaped, err := url.QueryUnescape(id); err == nil {
			id = unescaped
		}
		return Payload{Kind: KindStation, StationID: station.ID(id), Raw: raw}
	}
	return Payload{Kind: KindStation, StationID: station.ID(p), Raw: raw}
}
