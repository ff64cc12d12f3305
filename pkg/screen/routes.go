// Package screen maps tour progress onto page routes.
package screen

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"hexentour/pkg/progress"
	"hexentour/pkg/station"
)

// ErrUnknownRoute is returned for paths outside the tour.
var ErrUnknownRoute = errors.New("unknown route")

// Page is a routable page of the visitor app.
type Page string

const (
	PageStart   Page = "start"
	PageIntro   Page = "intro"
	PageMap     Page = "map"
	PageScan    Page = "scan"
	PageStation Page = "station"
	PageArrived Page = "arrived"
)

// Route is a parsed page location.
type Route struct {
	Page      Page
	StationID station.ID
}

// Path renders the route as a URL path with query.
func (r Route) Path() string {
	switch r.Page {
	case PageIntro:
		return "/intro"
	case PageMap:
		return "/map"
	case PageScan:
		if r.StationID == "" {
			return "/scan"
		}
		return "/scan?expect=" + url.QueryEscape(string(r.StationID))
	case PageStation:
		return "/station/" + url.PathEscape(string(r.StationID))
	case PageArrived:
		return "/arrived?station=" + url.QueryEscape(string(r.StationID))
	default:
		return "/"
	}
}

// Screen returns the progress screen the page shows. The arrived page sits
// between a scan and the station and has no screen of its own.
func (r Route) Screen() (progress.Screen, bool) {
	switch r.Page {
	case PageStart:
		return progress.ScreenStart, true
	case PageIntro:
		return progress.ScreenWelcome, true
	case PageMap:
		return progress.ScreenMap, true
	case PageScan:
		return progress.ScreenQR, true
	case PageStation:
		return progress.ScreenStation, true
	}
	return "", false
}

// Parse reads a path such as "/station/s03" or "/scan?expect=s04".
func Parse(raw string) (Route, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrUnknownRoute, err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	switch {
	case path == "":
		return Route{Page: PageStart}, nil
	case path == "/intro":
		return Route{Page: PageIntro}, nil
	case path == "/map":
		return Route{Page: PageMap}, nil
	case path == "/scan":
		r := Route{Page: PageScan}
		if e := u.Query().Get("expect"); e != "" {
			id, err := station.Parse(e)
			if err != nil {
				return Route{}, err
			}
			r.StationID = id
		}
		return r, nil
	case path == "/arrived":
		id, err := station.Parse(u.Query().Get("station"))
		if err != nil {
			return Route{}, err
		}
		return Route{Page: PageArrived, StationID: id}, nil
	case strings.HasPrefix(path, "/station/"):
		id, err := station.Parse(strings.TrimPrefix(path, "/station/"))
		if err != nil {
			return Route{}, err
		}
		return Route{Page: PageStation, StationID: id}, nil
	}
	return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, raw)
}

// NextTarget is the station the map points at: the first station from the
// start marker, otherwise the catalog successor.
func NextTarget(cat *station.Catalog, current station.ID) station.ID {
	if current == station.Start {
		return cat.First()
	}
	return cat.Next(current)
}

// For returns the route that shows st.
func For(cat *station.Catalog, st progress.State) Route {
	switch st.Screen {
	case progress.ScreenWelcome:
		return Route{Page: PageIntro}
	case progress.ScreenMap:
		return Route{Page: PageMap}
	case progress.ScreenQR:
		return Route{Page: PageScan, StationID: NextTarget(cat, st.CurrentStationID)}
	case progress.ScreenStation, progress.ScreenInfo:
		if st.CurrentStationID == station.Start {
			return Route{Page: PageMap}
		}
		return Route{Page: PageStation, StationID: st.CurrentStationID}
	}
	return Route{Page: PageStart}
}
