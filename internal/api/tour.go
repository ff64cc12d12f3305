package api

import (
	"net/http"

	"github.com/samber/lo"

	"hexentour/pkg/geo"
	"hexentour/pkg/progress"
	"hexentour/pkg/station"
	"hexentour/pkg/tour"
)

// TourHandler serves progress, station and navigation endpoints.
type TourHandler struct {
	tour *tour.Tour
}

// NewTourHandler creates a new TourHandler.
func NewTourHandler(t *tour.Tour) *TourHandler {
	return &TourHandler{tour: t}
}

// StationSummary is a catalog entry as listed for the map.
type StationSummary struct {
	ID       station.ID           `json:"id"`
	Title    string               `json:"title"`
	Variant  station.Variant      `json:"variant"`
	Unlock   station.UnlockMethod `json:"unlock"`
	Status   geo.StationStatus    `json:"status"`
	Location *station.Location    `json:"location,omitempty"`
}

type stationRequest struct {
	StationID station.ID `json:"stationId"`
}

type leaveRequest struct {
	Action int `json:"action"`
}

type routeRequest struct {
	Path string `json:"path"`
}

// HandleStatus handles GET /api/status
func (h *TourHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ok(w, h.tour.Status())
}

// HandleProgress handles GET /api/progress
func (h *TourHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ok(w, h.tour.Progress().Snapshot())
}

func (h *TourHandler) statusOf(st progress.State) func(station.ID) geo.StationStatus {
	target := h.tour.NextTarget()
	return func(id station.ID) geo.StationStatus {
		switch {
		case id == st.CurrentStationID:
			return geo.StatusCurrent
		case st.Completed[id]:
			return geo.StatusCompleted
		case id == target && st.Unlocked:
			return geo.StatusTarget
		case st.IsUnlocked(id):
			return geo.StatusUnlocked
		}
		return geo.StatusLocked
	}
}

// HandleStations handles GET /api/stations
func (h *TourHandler) HandleStations(w http.ResponseWriter, r *http.Request) {
	status := h.statusOf(h.tour.Progress().Snapshot())
	ok(w, lo.Map(h.tour.Catalog().Stations(), func(s station.Station, _ int) StationSummary {
		return StationSummary{
			ID:       s.ID,
			Title:    s.Title,
			Variant:  s.Variant,
			Unlock:   s.Unlock,
			Status:   status(s.ID),
			Location: s.Location,
		}
	}))
}

// HandleStation handles GET /api/stations/{id}
func (h *TourHandler) HandleStation(w http.ResponseWriter, r *http.Request) {
	id, err := station.Parse(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	st, err := h.tour.Catalog().Lookup(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	ok(w, st)
}

// HandleGeoJSON handles GET /api/stations.geojson
func (h *TourHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := geo.StationFeatures(h.tour.Catalog(), h.statusOf(h.tour.Progress().Snapshot()))
	data, err := fc.MarshalJSON()
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// HandleBegin handles POST /api/progress/begin
func (h *TourHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	h.tour.BeginTour()
	ok(w, h.tour.Progress().Snapshot())
}

// HandleSkipIntro handles POST /api/progress/skip-intro
func (h *TourHandler) HandleSkipIntro(w http.ResponseWriter, r *http.Request) {
	h.tour.SkipIntro()
	ok(w, h.tour.Progress().Snapshot())
}

// HandleReset handles POST /api/progress/reset
func (h *TourHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.tour.Reset(r.Context())
	ok(w, h.tour.Progress().Snapshot())
}

// HandleStartStation handles POST /api/station/start
func (h *TourHandler) HandleStartStation(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.tour.StartStation(req.StationID); err != nil {
		writeErr(w, err)
		return
	}
	ok(w, h.tour.Progress().Snapshot())
}

// HandleLeaveStation handles POST /api/station/leave
func (h *TourHandler) HandleLeaveStation(w http.ResponseWriter, r *http.Request) {
	var req leaveRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.tour.LeaveStation(req.Action); err != nil {
		writeErr(w, err)
		return
	}
	ok(w, h.tour.Progress().Snapshot())
}

// HandleInfo handles POST /api/station/info/{op} with op open or close.
func (h *TourHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	var err error
	switch r.PathValue("op") {
	case "open":
		err = h.tour.OpenInfo()
	case "close":
		err = h.tour.CloseInfo()
	default:
		writeError(w, http.StatusNotFound, "unknown info operation")
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	ok(w, h.tour.Progress().Snapshot())
}

// HandleRoute handles POST /api/route, sent by the page after it navigated.
func (h *TourHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.tour.Visit(req.Path); err != nil {
		writeErr(w, err)
		return
	}
	ok(w, h.tour.Status())
}

// HandlePosition handles POST /api/position
func (h *TourHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	var pos station.Location
	if !decode(w, r, &pos) {
		return
	}
	arr, err := h.tour.ReportPosition(r.Context(), pos)
	if err != nil {
		writeErr(w, err)
		return
	}
	ok(w, arr)
}
