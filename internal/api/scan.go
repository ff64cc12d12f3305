package api

import (
	"errors"
	"io"
	"net/http"

	"hexentour/pkg/scan"
	"hexentour/pkg/tour"
)

// ScanHandler drives the QR scan screen.
type ScanHandler struct {
	tour *tour.Tour
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(t *tour.Tour) *ScanHandler {
	return &ScanHandler{tour: t}
}

type submitRequest struct {
	Payload string `json:"payload"`
}

type cameraErrorRequest struct {
	// Name is the browser's DOMException name, e.g. NotAllowedError.
	Name string `json:"name"`
}

// HandleGet handles GET /api/scan
func (h *ScanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ok(w, h.tour.ScanResult())
}

// HandleStart handles POST /api/scan/start
func (h *ScanHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ok(w, h.tour.OpenScanner())
}

// HandleStop handles POST /api/scan/stop
func (h *ScanHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.tour.CancelScan()
	ok(w, h.tour.ScanResult())
}

// HandleRetry handles POST /api/scan/retry
func (h *ScanHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	ok(w, h.tour.RetryScan())
}

// HandleSubmit handles POST /api/scan/submit with text decoded by the page.
// A rejected payload is a normal outcome and answers 200 with status wrong.
func (h *ScanHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.tour.SubmitScan(req.Payload)
	if errors.Is(err, scan.ErrNotScanning) {
		writeErr(w, err)
		return
	}
	ok(w, res)
}

// HandleFrame handles POST /api/scan/frame with a png or jpeg camera frame.
func (h *ScanHandler) HandleFrame(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}
	res, err := h.tour.SubmitFrame(data)
	switch {
	case errors.Is(err, scan.ErrNotScanning):
		writeErr(w, err)
		return
	case errors.Is(err, scan.ErrNoCode):
		// Keep scanning; the page sends the next frame.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ok(w, res)
}

// HandleCameraError handles POST /api/scan/camera-error
func (h *ScanHandler) HandleCameraError(w http.ResponseWriter, r *http.Request) {
	var req cameraErrorRequest
	if !decode(w, r, &req) {
		return
	}
	ok(w, h.tour.CameraError(req.Name))
}
