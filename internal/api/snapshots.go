package api

import (
	"log/slog"
	"net/http"

	"hexentour/pkg/station"
	"hexentour/pkg/tour"
)

// SnapshotHandler lists and serves AR snapshots.
type SnapshotHandler struct {
	tour *tour.Tour
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(t *tour.Tour) *SnapshotHandler {
	return &SnapshotHandler{tour: t}
}

// SnapshotInfo is a listed snapshot.
type SnapshotInfo struct {
	ID        string `json:"id"`
	StationID string `json:"stationId"`
	MIME      string `json:"mime"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"createdAt"`
	URL       string `json:"url"`
}

// HandleTake handles POST /api/snapshots/take. The image arrives later
// through the AR frame.
func (h *SnapshotHandler) HandleTake(w http.ResponseWriter, r *http.Request) {
	h.tour.Bridge().TakeSnapshot()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

// HandleList handles GET /api/snapshots?station=sNN
func (h *SnapshotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snaps := h.tour.Snapshots()
	if snaps == nil {
		ok(w, []SnapshotInfo{})
		return
	}
	var id station.ID
	if q := r.URL.Query().Get("station"); q != "" {
		parsed, err := station.Parse(q)
		if err != nil {
			writeErr(w, err)
			return
		}
		id = parsed
	}
	recs, err := snaps.List(r.Context(), id)
	if err != nil {
		slog.Error("API: Failed to list snapshots", "error", err)
		writeErr(w, err)
		return
	}
	out := make([]SnapshotInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, SnapshotInfo{
			ID:        rec.ID,
			StationID: rec.StationID,
			MIME:      rec.MIME,
			Size:      rec.Size,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			URL:       "/api/snapshots/" + rec.ID,
		})
	}
	ok(w, out)
}

// HandleGet handles GET /api/snapshots/{id}
func (h *SnapshotHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snaps := h.tour.Snapshots()
	if snaps == nil {
		writeError(w, http.StatusNotFound, "snapshots disabled")
		return
	}
	rec, f, err := snaps.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", rec.MIME)
	http.ServeContent(w, r, rec.ID, rec.CreatedAt, f)
}
