// Package playback keeps the local station audio, the AR surface's audio
// and the dual-model speaker state in step.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"hexentour/pkg/audio"
	"hexentour/pkg/bridge"
	"hexentour/pkg/caption"
	"hexentour/pkg/dialog"
	"hexentour/pkg/event"
	"hexentour/pkg/metrics"
	"hexentour/pkg/persist"
	"hexentour/pkg/station"
)

var (
	// ErrMediaUnavailable means the station audio could not be loaded or played.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrNoTrack is returned by transport calls before a station is tracked.
	ErrNoTrack = errors.New("no station track")
)

// Media is a local audio element. Implementations deliver handler calls
// from their own goroutines and never from inside one of these methods.
type Media interface {
	SetHandlers(h audio.Handlers)
	Load(src string) error
	Play() error
	Pause()
	Seek(seconds float64) error
	CurrentTime() float64
	Duration() float64
	Paused() bool
}

// ARBridge is the part of the AR bridge the synchronizer uses.
type ARBridge interface {
	PlayAudio()
	PauseAudio()
	SeekAudio(seconds float64)
	ShowModel2()
	HideModel2()
	PlayModel2()
	PauseModel2()
	OnAudioPlay(fn func()) event.Unsubscribe
	OnAudioPause(fn func()) event.Unsubscribe
	OnAudioProgress(fn func(bridge.Progress)) event.Unsubscribe
}

// ResumeStore keeps the audio position across restarts.
type ResumeStore interface {
	Load(ctx context.Context) (persist.AudioResume, bool)
	Save(ctx context.Context, rec persist.AudioResume)
	Clear(ctx context.Context)
}

// Config holds the synchronizer tolerances.
type Config struct {
	PositionTolerance float64
	DurationTolerance float64
	WordsPerSecond    float64
	EchoWindow        time.Duration
	Layout            caption.Layout
	Now               func() time.Time
}

// DefaultConfig returns the standard tolerances.
func DefaultConfig() Config {
	return Config{
		PositionTolerance: 0.5,
		DurationTolerance: 0.1,
		WordsPerSecond:    dialog.DefaultWordsPerSecond,
		EchoWindow:        100 * time.Millisecond,
		Layout:            caption.DefaultLayout,
	}
}

// State is what the visitor UI renders.
type State struct {
	StationID   station.ID     `json:"stationId,omitempty"`
	Src         string         `json:"src,omitempty"`
	CurrentTime float64        `json:"currentTime"`
	Duration    float64        `json:"duration"`
	Playing     bool           `json:"playing"`
	Speaker     dialog.Speaker `json:"speaker,omitempty"`
	Caption     []string       `json:"caption"`
	Error       string         `json:"error,omitempty"`
}

// Synchronizer owns the local audio for the current station. Local actions
// are mirrored to the AR surface; AR audio events are mirrored locally but
// never produce AR commands of their own.
type Synchronizer struct {
	media   Media
	ar      ARBridge
	resume  ResumeStore
	metrics *metrics.Metrics
	cfg     Config
	echo    *Suppressor

	mu          sync.Mutex
	station     *station.Station
	lines       []dialog.Line
	timed       []dialog.Line
	chunks      [][]string
	layout      caption.Layout
	currentTime float64
	duration    float64
	playing     bool
	speaker     dialog.Speaker
	err         error
	lastSaved   int

	subs    []event.Unsubscribe
	updates event.Bus[State]
}

// NewSynchronizer wires media and ar together.
func NewSynchronizer(media Media, ar ARBridge, resume ResumeStore, m *metrics.Metrics, cfg Config) *Synchronizer {
	if cfg.WordsPerSecond <= 0 {
		cfg.WordsPerSecond = dialog.DefaultWordsPerSecond
	}
	if cfg.Layout == (caption.Layout{}) {
		cfg.Layout = caption.DefaultLayout
	}
	s := &Synchronizer{
		media:     media,
		ar:        ar,
		resume:    resume,
		metrics:   m,
		cfg:       cfg,
		echo:      NewSuppressor(cfg.EchoWindow, cfg.Now),
		layout:    cfg.Layout,
		duration:  math.NaN(),
		lastSaved: -1,
	}

	media.SetHandlers(audio.Handlers{
		OnTimeUpdate:     s.onTimeUpdate,
		OnDurationChange: s.onDurationChange,
		OnEnded:          s.onEnded,
		OnError:          s.onError,
	})
	s.subs = append(s.subs,
		ar.OnAudioPlay(s.onRemotePlay),
		ar.OnAudioPause(s.onRemotePause),
		ar.OnAudioProgress(s.onRemoteProgress),
	)
	return s
}

// Close detaches from the AR bridge and pauses.
func (s *Synchronizer) Close() {
	for _, unsub := range s.subs {
		unsub()
	}
	s.subs = nil
	s.Teardown()
}

// OnUpdate registers fn for state changes.
func (s *Synchronizer) OnUpdate(fn func(State)) event.Unsubscribe {
	return s.updates.Subscribe(fn)
}

// Track loads the audio of st. A resume record for the same station
// restores the position; a record for another station is discarded.
func (s *Synchronizer) Track(ctx context.Context, st station.Station) error {
	s.mu.Lock()
	prev := s.station
	cmds := s.teardownLocked()
	s.station = &st
	s.lines = dialog.Parse(st.DialogContent)
	s.timed = nil
	s.chunks = caption.Split(st.DialogContent, s.layout)
	s.currentTime = 0
	s.duration = math.NaN()
	s.err = nil
	s.lastSaved = -1
	s.speaker = ""
	if st.DualModel != nil {
		s.speaker = dialog.Speaker(st.DualModel.Primary)
	}
	s.mu.Unlock()
	run(cmds)

	if prev != nil && prev.ID != st.ID {
		s.resume.Clear(ctx)
	}

	if err := s.media.Load(st.DialogAudio); err != nil {
		s.fail(err)
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	if d := s.media.Duration(); dialog.ValidDuration(d) {
		s.mu.Lock()
		s.setDurationLocked(d)
		s.mu.Unlock()
	}
	if st.DualModel != nil {
		s.ar.ShowModel2()
	}

	if rec, ok := s.resume.Load(ctx); ok {
		if rec.StationID != st.ID {
			s.resume.Clear(ctx)
		} else if rec.CurrentTime > 0 {
			if err := s.media.Seek(rec.CurrentTime); err == nil {
				s.mu.Lock()
				s.currentTime = rec.CurrentTime
				s.mu.Unlock()
				slog.Info("Playback: Resumed position", "station", st.ID, "time", rec.CurrentTime)
			}
			if rec.Playing {
				if err := s.Play(); err != nil {
					slog.Warn("Playback: Failed to resume playback", "station", st.ID, "error", err)
				}
			}
		}
	}

	s.publish()
	return nil
}

// Play starts local audio and mirrors it to the AR surface.
func (s *Synchronizer) Play() error {
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return ErrNoTrack
	}
	if err := s.media.Play(); err != nil {
		s.err = err
		s.playing = false
		s.mu.Unlock()
		s.publish()
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	s.playing = true
	s.err = nil
	s.echo.Arm()
	s.mu.Unlock()

	s.ar.PlayAudio()
	s.saveResume(true)
	s.publish()
	return nil
}

// Pause pauses local audio and mirrors it to the AR surface.
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	s.media.Pause()
	s.playing = false
	s.echo.Arm()
	s.mu.Unlock()

	s.ar.PauseAudio()
	s.saveResume(true)
	s.publish()
}

// Toggle flips between playing and paused.
func (s *Synchronizer) Toggle() error {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()
	if playing {
		s.Pause()
		return nil
	}
	return s.Play()
}

// Seek moves local audio to seconds and mirrors it to the AR surface.
func (s *Synchronizer) Seek(seconds float64) error {
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return ErrNoTrack
	}
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if dialog.ValidDuration(s.duration) && seconds > s.duration {
		seconds = s.duration
	}
	if err := s.media.Seek(seconds); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	s.currentTime = seconds
	s.echo.Arm()
	cmds := s.speakerLocked()
	s.mu.Unlock()

	s.ar.SeekAudio(seconds)
	run(cmds)
	s.saveResume(true)
	s.publish()
	return nil
}

// Teardown pauses local audio whatever its state, e.g. when leaving the
// station screen.
func (s *Synchronizer) Teardown() {
	s.mu.Lock()
	cmds := s.teardownLocked()
	s.station = nil
	s.mu.Unlock()
	run(cmds)
	s.publish()
}

func (s *Synchronizer) teardownLocked() []func() {
	s.media.Pause()
	s.playing = false
	if s.station != nil && s.station.DualModel != nil {
		return []func(){s.ar.HideModel2}
	}
	return nil
}

// SetLayout changes the caption box and re-chunks the script.
func (s *Synchronizer) SetLayout(l caption.Layout) {
	s.mu.Lock()
	s.layout = l
	if s.station != nil {
		s.chunks = caption.Split(s.station.DialogContent, l)
	}
	s.mu.Unlock()
	s.publish()
}

// Layout returns the caption box in use.
func (s *Synchronizer) Layout() caption.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// Snapshot returns the current state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() State {
	st := State{
		CurrentTime: s.currentTime,
		Playing:     s.playing,
		Speaker:     s.speaker,
		Caption:     caption.Pad(caption.Visible(s.chunks, s.currentTime, s.duration)),
	}
	if dialog.ValidDuration(s.duration) {
		st.Duration = s.duration
	}
	if s.station != nil {
		st.StationID = s.station.ID
		st.Src = s.station.DialogAudio
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	return st
}

func (s *Synchronizer) publish() {
	s.updates.Publish(s.Snapshot())
}

func (s *Synchronizer) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.playing = false
	s.mu.Unlock()
	slog.Warn("Playback: Media error", "error", err)
	s.publish()
}

func (s *Synchronizer) setDurationLocked(d float64) {
	s.duration = d
	s.timed = dialog.Timed(s.lines, d, s.cfg.WordsPerSecond)
}

// speakerLocked returns the AR commands for a speaker change at the current
// position. Switching only happens while playing and once line timings
// are known.
func (s *Synchronizer) speakerLocked() []func() {
	if s.station == nil || s.station.DualModel == nil || !s.playing || len(s.timed) == 0 {
		return nil
	}
	sp := dialog.SpeakerAt(s.timed, s.currentTime)
	if sp == "" || sp == s.speaker {
		return nil
	}
	dm := s.station.DualModel
	var cmds []func()
	switch string(sp) {
	case dm.Secondary:
		cmds = []func(){s.ar.PauseAudio, s.ar.PlayModel2}
	case dm.Primary:
		cmds = []func(){s.ar.PauseModel2, s.ar.PlayAudio}
	default:
		return nil
	}
	slog.Debug("Playback: Speaker changed", "from", s.speaker, "to", sp, "at", s.currentTime)
	s.speaker = sp
	s.echo.Arm()
	return cmds
}

func run(cmds []func()) {
	for _, c := range cmds {
		c()
	}
}

func (s *Synchronizer) saveResume(force bool) {
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	sec := int(s.currentTime)
	if !force && sec == s.lastSaved {
		s.mu.Unlock()
		return
	}
	s.lastSaved = sec
	rec := persist.AudioResume{StationID: s.station.ID, CurrentTime: s.currentTime, Playing: s.playing}
	s.mu.Unlock()

	s.resume.Save(context.Background(), rec)
}

// Local media events.

func (s *Synchronizer) onTimeUpdate(t float64) {
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	s.currentTime = t
	cmds := s.speakerLocked()
	s.mu.Unlock()

	run(cmds)
	s.saveResume(false)
	s.publish()
}

func (s *Synchronizer) onDurationChange(d float64) {
	if !dialog.ValidDuration(d) {
		return
	}
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	s.setDurationLocked(d)
	cmds := s.speakerLocked()
	s.mu.Unlock()

	run(cmds)
	s.publish()
}

func (s *Synchronizer) onEnded() {
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	s.playing = false
	if dialog.ValidDuration(s.duration) {
		s.currentTime = s.duration
	}
	s.mu.Unlock()

	s.resume.Clear(context.Background())
	s.publish()
}

func (s *Synchronizer) onError(err error) {
	s.fail(err)
}

// Remote AR events.

func (s *Synchronizer) onRemotePlay() {
	if s.echo.Active() {
		s.metrics.EchoSuppressed("play")
		return
	}
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	if s.media.Paused() {
		if err := s.media.Play(); err != nil {
			s.err = err
			s.mu.Unlock()
			s.publish()
			return
		}
	}
	s.playing = true
	s.mu.Unlock()
	s.publish()
}

func (s *Synchronizer) onRemotePause() {
	if s.echo.Active() {
		s.metrics.EchoSuppressed("pause")
		return
	}
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	if !s.media.Paused() {
		s.media.Pause()
	}
	s.playing = false
	s.mu.Unlock()
	s.publish()
}

func (s *Synchronizer) onRemoteProgress(p bridge.Progress) {
	if s.echo.Active() {
		s.metrics.EchoSuppressed("progress")
		return
	}
	s.mu.Lock()
	if s.station == nil {
		s.mu.Unlock()
		return
	}
	if math.Abs(s.media.CurrentTime()-p.Time) > s.cfg.PositionTolerance {
		if err := s.media.Seek(p.Time); err == nil {
			s.currentTime = p.Time
		}
	}
	if p.Duration > 0 && (!dialog.ValidDuration(s.duration) || math.Abs(s.duration-p.Duration) > s.cfg.DurationTolerance) {
		s.setDurationLocked(p.Duration)
	}
	s.mu.Unlock()
	s.publish()
}
