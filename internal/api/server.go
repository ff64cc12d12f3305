package api

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hexentour/internal/ui"
	"hexentour/pkg/version"
)

// Handlers bundles every endpoint group the server mounts. Nil groups are
// skipped.
type Handlers struct {
	Tour      *TourHandler
	Scan      *ScanHandler
	Audio     *AudioHandler
	Snapshots *SnapshotHandler
	Settings  *SettingsHandler
	Frame     *FrameHandler
	UI        *UIBroadcaster
	Gatherer  prometheus.Gatherer
}

// NewServer creates and configures the HTTP server.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewMux(h, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewMux registers all routes. Split out of NewServer for tests.
func NewMux(h Handlers, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/log/event", handleLatestEvent)

	if h.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	}

	// Progress, stations and navigation
	if t := h.Tour; t != nil {
		mux.HandleFunc("GET /api/status", t.HandleStatus)
		mux.HandleFunc("GET /api/progress", t.HandleProgress)
		mux.HandleFunc("POST /api/progress/begin", t.HandleBegin)
		mux.HandleFunc("POST /api/progress/skip-intro", t.HandleSkipIntro)
		mux.HandleFunc("POST /api/progress/reset", t.HandleReset)
		mux.HandleFunc("GET /api/stations", t.HandleStations)
		mux.HandleFunc("GET /api/stations.geojson", t.HandleGeoJSON)
		mux.HandleFunc("GET /api/stations/{id}", t.HandleStation)
		mux.HandleFunc("POST /api/station/start", t.HandleStartStation)
		mux.HandleFunc("POST /api/station/leave", t.HandleLeaveStation)
		mux.HandleFunc("POST /api/station/info/{op}", t.HandleInfo)
		mux.HandleFunc("POST /api/route", t.HandleRoute)
		mux.HandleFunc("POST /api/position", t.HandlePosition)
	}

	if s := h.Scan; s != nil {
		mux.HandleFunc("GET /api/scan", s.HandleGet)
		mux.HandleFunc("POST /api/scan/start", s.HandleStart)
		mux.HandleFunc("POST /api/scan/stop", s.HandleStop)
		mux.HandleFunc("POST /api/scan/retry", s.HandleRetry)
		mux.HandleFunc("POST /api/scan/submit", s.HandleSubmit)
		mux.HandleFunc("POST /api/scan/frame", s.HandleFrame)
		mux.HandleFunc("POST /api/scan/camera-error", s.HandleCameraError)
	}

	if a := h.Audio; a != nil {
		mux.HandleFunc("POST /api/audio/control", a.HandleControl)
		mux.HandleFunc("POST /api/audio/layout", a.HandleLayout)
		mux.HandleFunc("GET /api/audio/status", a.HandleStatus)
	}

	if s := h.Snapshots; s != nil {
		mux.HandleFunc("POST /api/snapshots/take", s.HandleTake)
		mux.HandleFunc("GET /api/snapshots", s.HandleList)
		mux.HandleFunc("GET /api/snapshots/{id}", s.HandleGet)
	}

	if s := h.Settings; s != nil {
		mux.HandleFunc("GET /api/settings", s.HandleGet)
		mux.HandleFunc("POST /api/settings", s.HandleSet)
	}

	if h.Frame != nil {
		mux.Handle("GET /ws/frame", h.Frame)
	}
	if h.UI != nil {
		mux.Handle("GET /ws/ui", h.UI)
	}

	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	distFS, err := fs.Sub(ui.DistFS, "dist")
	if err != nil {
		panic(fmt.Sprintf("Failed to subtree dist from embedded assets: %v", err))
	}
	mux.Handle("/", http.FileServer(&spaFileSystem{root: http.FS(distFS)}))

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"version": version.Version})
}
