package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"hexentour/internal/api"
	"hexentour/pkg/audio"
	"hexentour/pkg/bridge"
	"hexentour/pkg/caption"
	"hexentour/pkg/config"
	"hexentour/pkg/db/maintenance"
	"hexentour/pkg/geo"
	"hexentour/pkg/logging"
	"hexentour/pkg/metrics"
	"hexentour/pkg/persist"
	"hexentour/pkg/playback"
	"hexentour/pkg/probe"
	"hexentour/pkg/progress"
	"hexentour/pkg/scan"
	"hexentour/pkg/snapshot"
	"hexentour/pkg/station"
	"hexentour/pkg/store"
	"hexentour/pkg/tour"
	"hexentour/pkg/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tour and its local HTTP surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

func run(ctx context.Context, opts *rootOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Hexentour Started", "version", version.Version)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	dbConn, st, err := initDB(cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	maintenance.Run(ctx, st, dbConn, maintenance.Options{
		SnapshotMaxAge: time.Duration(cfg.Snapshot.MaxAge),
		ResumeKey:      cfg.Storage.AudioKey,
	})

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	var area *geo.Area
	if cfg.Geo.AreaPath != "" {
		if area, err = geo.LoadArea(cfg.Geo.AreaPath); err != nil {
			return err
		}
	}

	probes := []probe.Probe{
		probe.Storage(st),
		probe.Catalog(cat),
		probe.WritableDir("Snapshot Dir", cfg.Snapshot.Dir),
		probe.AudioAssets(cat, cfg.Playback.AudioDir),
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	prov := config.NewProvider(cfg, st)
	frames := bridge.NewMessage()

	comps, err := initTour(ctx, cfg, cat, prov, st, m, frames, area)
	if err != nil {
		return err
	}
	defer comps.Close()

	comps.Tour.Start(ctx)
	defer comps.Tour.Stop()

	return runServer(ctx, cfg, comps.Tour, prov, frames, m, reg)
}

// TourComponents are the long-lived pieces behind one tour.
type TourComponents struct {
	Tour     *tour.Tour
	Player   *audio.Player
	Playback *playback.Synchronizer
}

// Close releases the audio device.
func (c *TourComponents) Close() {
	c.Playback.Close()
	c.Player.Close()
}

func initTour(ctx context.Context, cfg *config.Config, cat *station.Catalog, prov *config.UnifiedProvider, st *store.SQLiteStore, m *metrics.Metrics, frames *bridge.Message, area *geo.Area) (*TourComponents, error) {
	// The surface always runs in the browser frame, never in process.
	var surface bridge.Controller
	br := bridge.New(bridge.Select(surface, frames), m)
	resume := persist.NewResumeStore(st, cfg.Storage.AudioKey)
	player := audio.NewPlayer(cfg.Playback.AudioDir, time.Duration(cfg.Playback.Tick))

	syncer := playback.NewSynchronizer(player, br, resume, m, playback.Config{
		PositionTolerance: time.Duration(cfg.Playback.PositionTolerance).Seconds(),
		DurationTolerance: time.Duration(cfg.Playback.DurationTolerance).Seconds(),
		WordsPerSecond:    prov.WordsPerSecond(ctx),
		EchoWindow:        time.Duration(cfg.Bridge.EchoWindow),
		Layout: caption.Layout{
			Width:    cfg.Caption.DefaultWidth,
			FontSize: cfg.Caption.FontSize,
			Padding:  cfg.Caption.Padding,
		},
	})

	snaps, err := snapshot.NewStore(cfg.Snapshot.Dir, st, m)
	if err != nil {
		syncer.Close()
		player.Close()
		return nil, fmt.Errorf("failed to initialize snapshots: %w", err)
	}

	t := tour.New(tour.Deps{
		Catalog:   cat,
		Progress:  progress.NewStore(cat),
		Adapter:   persist.NewAdapter(st, cat, cfg.Storage.ProgressKey, m),
		Resume:    resume,
		Bridge:    br,
		Gate:      bridge.NewGate(time.Duration(cfg.Bridge.ReadyTimeout)),
		Playback:  syncer,
		Decoder:   scan.NewQRDecoder(),
		Arrival:   geo.NewArrivalChecker(cat, float64(cfg.Geo.ArrivalRadius), area),
		Snapshots: snaps,
		Settings:  prov,
		Volume:    player,
		Metrics:   m,
	}, tour.Options{
		SyncDelay:       time.Duration(cfg.Screen.SyncDelay),
		SmoothingWindow: cfg.Geo.SmoothingWindow,
	})

	return &TourComponents{Tour: t, Player: player, Playback: syncer}, nil
}

func runServer(ctx context.Context, cfg *config.Config, t *tour.Tour, prov *config.UnifiedProvider, frames *bridge.Message, m *metrics.Metrics, reg *prometheus.Registry) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	uiH := api.NewUIBroadcaster(t, m)
	defer uiH.Close()

	srv := api.NewServer(cfg.Server.Address, api.Handlers{
		Tour:      api.NewTourHandler(t),
		Scan:      api.NewScanHandler(t),
		Audio:     api.NewAudioHandler(t),
		Snapshots: api.NewSnapshotHandler(t),
		Settings:  api.NewSettingsHandler(prov, t),
		Frame:     api.NewFrameHandler(t.Bridge(), frames, cfg.Server.Origin, m),
		UI:        uiH,
		Gatherer:  reg,
	}, shutdownFunc)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
