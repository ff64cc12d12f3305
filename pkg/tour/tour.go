// Package tour wires the progress store, persistence, AR bridge, audio
// synchronizer, scanner and navigation into one visitor session.
package tour

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hexentour/pkg/bridge"
	"hexentour/pkg/config"
	"hexentour/pkg/event"
	"hexentour/pkg/geo"
	"hexentour/pkg/logging"
	"hexentour/pkg/metrics"
	"hexentour/pkg/persist"
	"hexentour/pkg/playback"
	"hexentour/pkg/progress"
	"hexentour/pkg/scan"
	"hexentour/pkg/screen"
	"hexentour/pkg/snapshot"
	"hexentour/pkg/station"
)

var (
	// ErrNotReady means the AR surface has neither reported ready nor
	// timed out since the station was loaded.
	ErrNotReady = errors.New("AR surface not ready")
	// ErrNoStation means no station screen is open.
	ErrNoStation = errors.New("no station open")
	// ErrNoAction means the exit button index does not exist.
	ErrNoAction = errors.New("no such station action")
	// ErrLocked means the visitor has not unlocked the tour or station yet.
	ErrLocked = errors.New("not unlocked")
	// ErrNotWalking means positions are ignored on the current screen.
	ErrNotWalking = errors.New("positions only count on the map or scanner")
	// ErrNoGPS means no arrival checker is configured.
	ErrNoGPS = errors.New("gps arrival disabled")
)

// Volume is the output level control of the local audio element.
type Volume interface {
	SetVolume(vol float64)
}

// Deps are the components a tour runs on. Snapshots, Arrival, Settings,
// Volume and Metrics may be nil.
type Deps struct {
	Catalog   *station.Catalog
	Progress  *progress.Store
	Adapter   *persist.Adapter
	Resume    *persist.ResumeStore
	Bridge    *bridge.Bridge
	Gate      *bridge.Gate
	Playback  *playback.Synchronizer
	Decoder   scan.Decoder
	Arrival   *geo.ArrivalChecker
	Snapshots *snapshot.Store
	Settings  config.Provider
	Volume    Volume
	Metrics   *metrics.Metrics
}

// Options tune the session.
type Options struct {
	SyncDelay       time.Duration
	SmoothingWindow int
}

// Tour is one visitor session.
type Tour struct {
	catalog   *station.Catalog
	progress  *progress.Store
	adapter   *persist.Adapter
	resume    *persist.ResumeStore
	bridge    *bridge.Bridge
	gate      *bridge.Gate
	playback  *playback.Synchronizer
	arrival   *geo.ArrivalChecker
	snapshots *snapshot.Store
	settings  config.Provider
	volume    Volume
	metrics   *metrics.Metrics

	scan    *scan.Session
	nav     *screen.Navigator
	watcher *persist.Watcher
	track   *geo.TrackBuffer

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	active      station.ID
	mode        bridge.Mode
	lastArrival *geo.Arrival
	subs        []event.Unsubscribe

	pushes event.Bus[Push]
}

// New assembles a tour. Nothing happens until Start.
func New(d Deps, opts Options) *Tour {
	t := &Tour{
		catalog:   d.Catalog,
		progress:  d.Progress,
		adapter:   d.Adapter,
		resume:    d.Resume,
		bridge:    d.Bridge,
		gate:      d.Gate,
		playback:  d.Playback,
		arrival:   d.Arrival,
		snapshots: d.Snapshots,
		settings:  d.Settings,
		volume:    d.Volume,
		metrics:   d.Metrics,
		track:     geo.NewTrackBuffer(opts.SmoothingWindow),
		ctx:       context.Background(),
	}
	t.scan = scan.NewSession(d.Catalog, t.currentStation, d.Decoder, d.Metrics)
	t.nav = screen.NewNavigator(d.Progress, t, opts.SyncDelay)
	t.watcher = persist.NewWatcher(d.Adapter, d.Progress)
	return t
}

func (t *Tour) currentStation() station.ID {
	return t.progress.Snapshot().CurrentStationID
}

// Start hydrates progress from storage, begins persisting every change and
// schedules the initial route sync. It returns whether stored progress was
// restored.
func (t *Tour) Start(ctx context.Context) bool {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return false
	}
	t.started = true
	t.ctx = ctx
	t.mu.Unlock()

	restored := persist.Hydrate(ctx, t.adapter, t.progress)
	t.watcher.Start(ctx)

	t.scan.OnStart(func(expect station.ID) { t.bridge.StartQRScan(string(expect)) })
	subs := []event.Unsubscribe{
		t.progress.Subscribe(t.onProgress),
		t.scan.Subscribe(t.onScan),
		t.bridge.OnQR(t.onQR),
		t.bridge.OnSnapshot(t.onSnapshot),
		t.bridge.OnReady(t.gate.Signal),
		t.bridge.OnStationReady(t.gate.Signal),
		t.bridge.OnState(func(st bridge.State) { t.publish(PushAR, st) }),
		t.gate.OnOpen(t.onGateOpen),
		t.playback.OnUpdate(func(st playback.State) { t.publish(PushAudio, st) }),
	}
	t.mu.Lock()
	t.subs = subs
	t.mu.Unlock()

	t.ApplySettings(ctx)
	t.onProgress(t.progress.Snapshot())
	t.nav.InitialSync()
	t.nav.Follow()

	slog.Info("Tour: Started", "restored", restored, "stations", t.catalog.Len(), "transport", t.bridge.TransportName())
	return restored
}

// Stop detaches every listener and silences the audio.
func (t *Tour) Stop() {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	t.nav.Stop()
	t.watcher.Stop()
	t.gate.Stop()
	t.scan.Stop()
	t.playback.Teardown()
}

// OnPush registers fn for messages meant for the visitor page.
func (t *Tour) OnPush(fn func(Push)) event.Unsubscribe {
	return t.pushes.Subscribe(fn)
}

func (t *Tour) publish(typ string, payload any) {
	t.pushes.Publish(Push{Type: typ, Payload: payload})
}

// Navigate implements screen.Router by pushing the path to the page.
func (t *Tour) Navigate(path string) {
	slog.Debug("Tour: Navigate", "path", path)
	t.publish(PushNavigate, Navigate{Path: path})
}

func (t *Tour) context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx
}

func (t *Tour) onGateOpen(reason string) {
	slog.Info("Tour: AR surface ready", "reason", reason)
	t.publish(PushGate, GateState{Open: true, Reason: reason})
}

// onProgress runs after every progress mutation and keeps the AR surface
// and audio on the station the state names.
func (t *Tour) onProgress(st progress.State) {
	t.publish(PushProgress, st)

	var enter, leave station.ID
	var mode bridge.Mode
	t.mu.Lock()
	switch st.Screen {
	case progress.ScreenStation, progress.ScreenInfo:
		if st.CurrentStationID != station.Start && st.CurrentStationID != t.active {
			leave = t.active
			enter = st.CurrentStationID
			t.active = enter
			t.mode = bridge.ModeStation
		}
	default:
		leave = t.active
		t.active = ""
		if st.Screen == progress.ScreenWelcome && t.mode != bridge.ModeWelcome {
			mode = bridge.ModeWelcome
			t.mode = mode
		}
	}
	t.mu.Unlock()

	if leave != "" {
		t.leave(leave)
	}
	if mode != "" {
		t.bridge.SetMode(mode)
	}
	if enter != "" {
		t.enter(enter)
	}
	if st.Screen == progress.ScreenInfo && t.playback.Snapshot().Playing {
		t.playback.Pause()
	}
}

func (t *Tour) enter(id station.ID) {
	st, err := t.catalog.Lookup(id)
	if err != nil {
		slog.Warn("Tour: Station vanished from catalog", "id", id)
		return
	}
	t.gate.Arm()
	if t.bridge.State().Ready {
		t.gate.Signal()
	}
	t.bridge.SetMode(bridge.ModeStation)
	t.bridge.LoadStation(string(id))
	if err := t.playback.Track(t.context(), st); err != nil {
		slog.Warn("Tour: Station audio unavailable", "id", id, "error", err)
	}
	slog.Info("Tour: Station started", "id", id, "title", st.Title)
	logging.LogEvent(&logging.Event{Type: logging.EventStationStarted, Title: string(id), Summary: st.Title})
}

func (t *Tour) leave(id station.ID) {
	t.playback.Teardown()
	slog.Info("Tour: Station left", "id", id)
	logging.LogEvent(&logging.Event{Type: logging.EventStationLeft, Title: string(id)})
}

func (t *Tour) onScan(res scan.Result) {
	t.publish(PushScan, res)

	switch res.Status {
	case scan.StatusScanned:
		t.metrics.StationArrival("qr")
		logging.LogEvent(&logging.Event{Type: logging.EventScanAccepted, Title: string(res.StationID)})
		t.progress.StartStation(res.StationID)
	case scan.StatusUnlocked:
		logging.LogEvent(&logging.Event{Type: logging.EventTourUnlocked, Title: "QR"})
		t.progress.UnlockTour()
		t.progress.GoToMap()
	case scan.StatusWrong:
		logging.LogEvent(&logging.Event{
			Type:    logging.EventScanRejected,
			Title:   "expected " + string(res.Expected),
			Summary: res.Message,
		})
	}
}

func (t *Tour) onQR(payload string) {
	if _, err := t.scan.Submit(payload); errors.Is(err, scan.ErrNotScanning) {
		slog.Debug("Tour: QR payload outside scan", "payload", payload)
	}
}

func (t *Tour) onSnapshot(data json.RawMessage) {
	if t.snapshots == nil {
		slog.Debug("Tour: Snapshot ignored, no store")
		return
	}
	rec, err := t.snapshots.Save(t.context(), t.currentStation(), data)
	if err != nil {
		slog.Warn("Tour: Snapshot not saved", "error", err)
		return
	}
	logging.LogEvent(&logging.Event{Type: logging.EventSnapshot, Title: rec.ID, Summary: rec.StationID})
}

// BeginTour leaves the start screen for the intro.
func (t *Tour) BeginTour() {
	t.progress.GoToWelcome()
}

// SkipIntro goes from the intro straight to the map.
func (t *Tour) SkipIntro() {
	t.progress.GoToMap()
}

// OpenScanner shows the scan screen and starts scanning for the next station.
func (t *Tour) OpenScanner() scan.Result {
	t.progress.GoToQR()
	return t.scan.Start("")
}

// CancelScan stops scanning and returns to the map.
func (t *Tour) CancelScan() {
	t.scan.Stop()
	t.progress.GoToMap()
}

// RetryScan scans again after a mismatch or camera failure.
func (t *Tour) RetryScan() scan.Result {
	return t.scan.Retry()
}

// SubmitScan validates decoded QR text.
func (t *Tour) SubmitScan(raw string) (scan.Result, error) {
	return t.scan.Submit(raw)
}

// SubmitFrame decodes a png or jpeg camera frame.
func (t *Tour) SubmitFrame(data []byte) (scan.Result, error) {
	return t.scan.SubmitFrameBytes(data)
}

// CameraError ends the scan with the message for a browser media error name.
func (t *Tour) CameraError(name string) scan.Result {
	return t.scan.Fail(scan.ClassifyCameraError(name))
}

// ScanResult returns the scan screen state.
func (t *Tour) ScanResult() scan.Result {
	return t.scan.Result()
}

// StartStation opens the station screen for id, or for the current
// station when id is empty. Stations the visitor has not reached stay shut.
func (t *Tour) StartStation(id station.ID) error {
	st := t.progress.Snapshot()
	if id == "" {
		id = st.CurrentStationID
	}
	if id == station.Start {
		return ErrNoStation
	}
	if !st.IsUnlocked(id) {
		return fmt.Errorf("%w: %s", ErrLocked, id)
	}
	t.progress.StartStation(id)
	return nil
}

func (t *Tour) requireReady() error {
	if open, _ := t.gate.Open(); !open {
		return ErrNotReady
	}
	return nil
}

func (t *Tour) activeStation() (station.Station, error) {
	t.mu.Lock()
	id := t.active
	t.mu.Unlock()
	if id == "" {
		return station.Station{}, ErrNoStation
	}
	return t.catalog.Lookup(id)
}

// OpenInfo shows the more-info dialog and pauses the narration.
func (t *Tour) OpenInfo() error {
	if _, err := t.activeStation(); err != nil {
		return err
	}
	if err := t.requireReady(); err != nil {
		return err
	}
	t.progress.OpenInfo()
	return nil
}

// CloseInfo returns from the info dialog to the station.
func (t *Tour) CloseInfo() error {
	if _, err := t.activeStation(); err != nil {
		return err
	}
	t.progress.CloseInfo()
	return nil
}

// LeaveStation runs the station's exit button at index. Advancing by one
// completes the station without moving; advancing by two also steps onto
// the skipped station so the scanner expects the one after it.
func (t *Tour) LeaveStation(index int) error {
	st, err := t.activeStation()
	if err != nil {
		return err
	}
	if err := t.requireReady(); err != nil {
		return err
	}
	actions := st.Actions()
	if index < 0 || index >= len(actions) {
		return fmt.Errorf("%w: %d", ErrNoAction, index)
	}

	a := actions[index]
	slog.Info("Tour: Leaving station", "id", st.ID, "action", a.Label, "advance_by", a.AdvanceBy)
	switch a.AdvanceBy {
	case 2:
		t.progress.CompleteCurrentAndAdvance()
	default:
		t.progress.CompleteCurrent()
	}
	return nil
}

// NextTarget is the station the map points at.
func (t *Tour) NextTarget() station.ID {
	return screen.NextTarget(t.catalog, t.currentStation())
}

// ReportPosition checks a GPS fix against the expected next station. A fix
// inside the arrival radius moves the visitor onto that station and sends
// the page to the arrived screen.
func (t *Tour) ReportPosition(ctx context.Context, pos station.Location) (geo.Arrival, error) {
	if t.arrival == nil {
		return geo.Arrival{}, ErrNoGPS
	}
	st := t.progress.Snapshot()
	if !st.Unlocked {
		return geo.Arrival{}, ErrLocked
	}
	if st.Screen != progress.ScreenMap && st.Screen != progress.ScreenQR {
		return geo.Arrival{}, ErrNotWalking
	}

	smoothed := t.track.Push(pos)
	expected := scan.ExpectedNext(st.CurrentStationID)
	radius := 0.0
	if t.settings != nil {
		radius = t.settings.ArrivalRadius(ctx)
	}
	arr, err := t.arrival.CheckWithin(expected, smoothed, radius)
	if err != nil {
		return arr, err
	}

	t.mu.Lock()
	last := arr
	t.lastArrival = &last
	t.mu.Unlock()
	t.publish(PushArrival, arr)

	if !arr.Reached {
		return arr, nil
	}

	slog.Info("Tour: Arrived by position", "id", expected, "distance", arr.Distance)
	t.metrics.StationArrival("gps")
	t.track.Reset()
	t.scan.Stop()
	t.progress.SetCurrentStation(expected)
	t.progress.GoToMap()
	t.nav.Go(screen.Route{Page: screen.PageArrived, StationID: expected}.Path())
	logging.LogEvent(&logging.Event{
		Type:    logging.EventGPSArrival,
		Title:   string(expected),
		Summary: fmt.Sprintf("%.0f m", arr.Distance),
	})
	return arr, nil
}

// Visit reports the path the page shows. Before the initial sync the
// stored state wins; afterward page navigation drives the screen.
func (t *Tour) Visit(path string) error {
	r, err := screen.Parse(path)
	if err != nil {
		return err
	}
	t.nav.Visited(r.Path())
	if !t.nav.Synced() {
		return nil
	}

	st := t.progress.Snapshot()
	if st.Screen == progress.ScreenQR && r.Page != screen.PageScan {
		t.scan.Stop()
	}

	switch r.Page {
	case screen.PageArrived:
		return nil
	case screen.PageStation:
		if r.StationID == st.CurrentStationID && (st.Screen == progress.ScreenStation || st.Screen == progress.ScreenInfo) {
			return nil
		}
		if !st.IsUnlocked(r.StationID) {
			return fmt.Errorf("%w: %s", ErrLocked, r.StationID)
		}
		t.progress.StartStation(r.StationID)
	case screen.PageScan:
		if st.Screen != progress.ScreenQR {
			t.OpenScanner()
		}
	case screen.PageIntro:
		if st.Screen != progress.ScreenWelcome {
			t.progress.GoToWelcome()
		}
	default:
		if sc, ok := r.Screen(); ok && sc != st.Screen {
			t.progress.SetScreen(sc)
		}
	}
	return nil
}

// Reset forgets all progress and the audio resume record.
func (t *Tour) Reset(ctx context.Context) {
	t.scan.Stop()
	t.track.Reset()
	t.mu.Lock()
	t.lastArrival = nil
	t.mu.Unlock()

	t.progress.Reset()
	t.playback.Teardown()
	t.adapter.Clear(ctx)
	if t.resume != nil {
		t.resume.Clear(ctx)
	}
	slog.Info("Tour: Progress reset")
	logging.LogEvent(&logging.Event{Type: logging.EventReset, Title: "progress"})
}

// ApplySettings pushes runtime settings into the audio element and the
// caption layout.
func (t *Tour) ApplySettings(ctx context.Context) {
	if t.settings == nil {
		return
	}
	l := t.playback.Layout()
	l.Width = t.settings.CaptionWidth(ctx)
	t.playback.SetLayout(l)
	if t.volume != nil {
		t.volume.SetVolume(t.settings.Volume(ctx))
	}
}

// Status collects the state the visitor page renders.
func (t *Tour) Status() Status {
	st := t.progress.Snapshot()
	open, reason := t.gate.Open()

	route := t.nav.Current()
	if route == "" {
		route = screen.For(t.catalog, st).Path()
	}

	t.mu.Lock()
	var arr *geo.Arrival
	if t.lastArrival != nil {
		a := *t.lastArrival
		arr = &a
	}
	t.mu.Unlock()

	return Status{
		Progress: st,
		Route:    route,
		Target:   string(screen.NextTarget(t.catalog, st.CurrentStationID)),
		Audio:    t.playback.Snapshot(),
		Scan:     t.scan.Result(),
		Gate:     GateState{Open: open, Reason: reason},
		AR:       t.bridge.State(),
		Arrival:  arr,
	}
}

// Catalog returns the station catalog.
func (t *Tour) Catalog() *station.Catalog { return t.catalog }

// Progress returns the progress store.
func (t *Tour) Progress() *progress.Store { return t.progress }

// Playback returns the audio synchronizer.
func (t *Tour) Playback() *playback.Synchronizer { return t.playback }

// Snapshots returns the snapshot store, nil when disabled.
func (t *Tour) Snapshots() *snapshot.Store { return t.snapshots }

// Bridge returns the AR bridge.
func (t *Tour) Bridge() *bridge.Bridge { return t.bridge }
