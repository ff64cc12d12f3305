package scan

import (
	"errors"
	"fmt"
)

// Camera failures reported by the browser, see ClassifyCameraError.
var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoCamera         = errors.New("no camera found")
	ErrDeviceBusy       = errors.New("camera busy")
	ErrCamera           = errors.New("camera error")
)

// ClassifyCameraError maps a browser media error name (a DOMException
// name such as "NotAllowedError") to a scan error.
func ClassifyCameraError(name string) error {
	switch name {
	case "NotAllowedError", "PermissionDeniedError", "SecurityError":
		return ErrPermissionDenied
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		return ErrNoCamera
	case "NotReadableError", "TrackStartError", "AbortError":
		return ErrDeviceBusy
	}
	if name == "" {
		return ErrCamera
	}
	return fmt.Errorf("%w: %s", ErrCamera, name)
}

// CameraMessage is the visitor-facing text for a camera error.
func CameraMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Kamerazugriff verweigert. Bitte erlaube den Kamerazugriff in den Browser-Einstellungen."
	case errors.Is(err, ErrNoCamera):
		return "Keine Kamera gefunden."
	case errors.Is(err, ErrDeviceBusy):
		return "Die Kamera wird bereits von einer anderen Anwendung verwendet."
	default:
		return "Die Kamera konnte nicht gestartet werden."
	}
}
