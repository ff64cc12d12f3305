package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"hexentour/pkg/geo"
	"hexentour/pkg/playback"
	"hexentour/pkg/scan"
	"hexentour/pkg/screen"
	"hexentour/pkg/snapshot"
	"hexentour/pkg/station"
	"hexentour/pkg/tour"
)

// maxBody caps request bodies; camera frames are the largest payload.
const maxBody = 8 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("API: Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: msg})
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tour.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, tour.ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, tour.ErrNoStation),
		errors.Is(err, tour.ErrNotWalking),
		errors.Is(err, scan.ErrNotScanning),
		errors.Is(err, playback.ErrNoTrack):
		return http.StatusConflict
	case errors.Is(err, station.ErrUnknownStation),
		errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tour.ErrNoAction),
		errors.Is(err, tour.ErrNoGPS),
		errors.Is(err, station.ErrInvalidID),
		errors.Is(err, screen.ErrUnknownRoute),
		errors.Is(err, snapshot.ErrEmpty),
		errors.Is(err, snapshot.ErrBadData):
		return http.StatusBadRequest
	case errors.Is(err, geo.ErrNoLocation),
		errors.Is(err, geo.ErrOutsideArea):
		return http.StatusUnprocessableEntity
	case errors.Is(err, playback.ErrMediaUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func ok(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}
