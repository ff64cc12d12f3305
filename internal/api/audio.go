package api

import (
	"net/http"

	"hexentour/pkg/tour"
)

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	tour *tour.Tour
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(t *tour.Tour) *AudioHandler {
	return &AudioHandler{tour: t}
}

// AudioControlRequest represents an audio control command.
type AudioControlRequest struct {
	Action string  `json:"action"` // "play", "pause", "toggle", "seek"
	Time   float64 `json:"time"`
}

// AudioLayoutRequest reports the measured caption box.
type AudioLayoutRequest struct {
	Width    float64 `json:"width"`
	FontSize float64 `json:"fontSize,omitempty"`
}

// HandleControl handles POST /api/audio/control
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if !decode(w, r, &req) {
		return
	}

	pb := h.tour.Playback()
	var err error
	switch req.Action {
	case "play":
		err = pb.Play()
	case "pause":
		pb.Pause()
	case "toggle":
		err = pb.Toggle()
	case "seek":
		err = pb.Seek(req.Time)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	ok(w, pb.Snapshot())
}

// HandleLayout handles POST /api/audio/layout
func (h *AudioHandler) HandleLayout(w http.ResponseWriter, r *http.Request) {
	var req AudioLayoutRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Width <= 0 {
		writeError(w, http.StatusBadRequest, "width must be positive")
		return
	}

	pb := h.tour.Playback()
	l := pb.Layout()
	l.Width = req.Width
	if req.FontSize > 0 {
		l.FontSize = req.FontSize
	}
	pb.SetLayout(l)
	ok(w, pb.Snapshot())
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ok(w, h.tour.Playback().Snapshot())
}
