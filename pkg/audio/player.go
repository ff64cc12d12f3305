// Package audio plays station dialog audio on the local output device.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// ErrNotLoaded is returned by transport calls before a track is loaded.
var ErrNotLoaded = errors.New("no audio loaded")

const targetSampleRate = 48000

// Handlers receive media events. They run on the player's own goroutines,
// never from inside a Player method, so they may call back into the player.
type Handlers struct {
	OnTimeUpdate     func(seconds float64)
	OnDurationChange func(seconds float64)
	OnEnded          func()
	OnError          func(err error)
}

// Player is a single-track media element built on gopxl/beep.
type Player struct {
	mu                 sync.RWMutex
	baseDir            string
	tick               time.Duration
	handlers           Handlers
	ctrl               *beep.Ctrl
	streamer           *effects.Volume
	track              beep.StreamSeekCloser
	format             beep.Format
	src                string
	volume             float64
	paused             bool
	ended              bool
	attached           bool
	generation         int
	speakerInitialized bool
	sampleRate         beep.SampleRate
	stopTick           chan struct{}
}

// NewPlayer creates a player resolving sources below baseDir and emitting
// time updates every tick while playing.
func NewPlayer(baseDir string, tick time.Duration) *Player {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return &Player{
		baseDir: baseDir,
		tick:    tick,
		volume:  1.0,
		paused:  true,
	}
}

// SetHandlers replaces the event handlers.
func (p *Player) SetHandlers(h Handlers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = h
}

// Load replaces the current track with src, paused at 0.
func (p *Player) Load(src string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.unloadLocked()
	p.generation++
	p.src = src

	path, err := Resolve(p.baseDir, src)
	if err != nil {
		p.emitError(err)
		return err
	}
	track, format, err := Decode(path)
	if err != nil {
		err = fmt.Errorf("load %s: %w", src, err)
		p.emitError(err)
		return err
	}
	if err := p.ensureSpeakerInitialized(); err != nil {
		track.Close()
		p.emitError(err)
		return err
	}

	resampled := beep.Resample(3, format.SampleRate, p.sampleRate, track)
	p.streamer = &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(p.volume),
		Silent:   p.volume <= 0.01,
	}
	p.ctrl = &beep.Ctrl{Streamer: p.streamer, Paused: true}
	p.track = track
	p.format = format
	p.paused = true
	p.ended = false
	p.attachLocked()

	d := format.SampleRate.D(track.Len()).Seconds()
	p.emit(func(h Handlers) {
		if h.OnDurationChange != nil {
			h.OnDurationChange(d)
		}
	})
	slog.Debug("Audio: Loaded", "src", src, "duration", d)
	return nil
}

func (p *Player) attachLocked() {
	gen := p.generation
	speaker.Play(beep.Seq(p.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine; hand off before taking locks
		go p.handleEnded(gen)
	})))
	p.attached = true
}

func (p *Player) handleEnded(gen int) {
	p.mu.Lock()
	if gen != p.generation || p.track == nil {
		p.mu.Unlock()
		return
	}
	p.attached = false
	p.ended = true
	p.paused = true
	p.stopTickerLocked()
	p.mu.Unlock()

	p.emit(func(h Handlers) {
		if h.OnEnded != nil {
			h.OnEnded()
		}
	})
}

// Play starts or resumes playback. A finished track restarts from 0.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return ErrNotLoaded
	}
	if p.ended {
		speaker.Lock()
		err := p.track.Seek(0)
		speaker.Unlock()
		if err != nil {
			return err
		}
		p.ended = false
	}
	if !p.attached {
		p.attachLocked()
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.paused = false
	p.startTickerLocked()
	return nil
}

// Pause pauses playback. Safe to call in any state.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctrl != nil {
		speaker.Lock()
		p.ctrl.Paused = true
		speaker.Unlock()
	}
	p.paused = true
	p.stopTickerLocked()
}

// Seek moves to seconds, clamped to the track.
func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return ErrNotLoaded
	}
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	pos := p.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if last := p.track.Len() - 1; pos > last {
		pos = max(last, 0)
	}

	speaker.Lock()
	err := p.track.Seek(pos)
	speaker.Unlock()
	if err != nil {
		return err
	}
	p.ended = false

	t := p.format.SampleRate.D(pos).Seconds()
	p.emit(func(h Handlers) {
		if h.OnTimeUpdate != nil {
			h.OnTimeUpdate(t)
		}
	})
	return nil
}

// CurrentTime returns the playback position in seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	if p.track == nil || p.format.SampleRate == 0 {
		return 0
	}
	if p.ended {
		return p.format.SampleRate.D(p.track.Len()).Seconds()
	}
	speaker.Lock()
	pos := p.track.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos).Seconds()
}

// Duration returns the track length in seconds, NaN when nothing is loaded.
func (p *Player) Duration() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.track == nil || p.format.SampleRate == 0 {
		return math.NaN()
	}
	return p.format.SampleRate.D(p.track.Len()).Seconds()
}

// Paused reports whether playback is paused.
func (p *Player) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// Src returns the last requested source.
func (p *Player) Src() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.src
}

// SetVolume sets playback volume (0.0 to 1.0).
func (p *Player) SetVolume(vol float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	p.volume = vol

	if p.streamer != nil {
		speaker.Lock()
		p.streamer.Volume = volumeToPower(vol)
		p.streamer.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns current volume level.
func (p *Player) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// Close stops playback and releases the track.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloadLocked()
	p.generation++
}

func (p *Player) unloadLocked() {
	p.stopTickerLocked()
	if p.attached {
		speaker.Clear()
		p.attached = false
	}
	if p.track != nil {
		p.track.Close()
		p.track = nil
	}
	p.ctrl = nil
	p.streamer = nil
	p.paused = true
	p.ended = false
}

func (p *Player) ensureSpeakerInitialized() error {
	if p.speakerInitialized {
		return nil
	}
	rate := beep.SampleRate(targetSampleRate)
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		slog.Error("Audio: Failed to initialize speaker", "error", err)
		return err
	}
	p.speakerInitialized = true
	p.sampleRate = rate
	return nil
}

func (p *Player) startTickerLocked() {
	if p.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	p.stopTick = stop
	go func() {
		t := time.NewTicker(p.tick)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				now := p.CurrentTime()
				p.mu.RLock()
				h := p.handlers
				p.mu.RUnlock()
				if h.OnTimeUpdate != nil {
					h.OnTimeUpdate(now)
				}
			}
		}
	}()
}

func (p *Player) stopTickerLocked() {
	if p.stopTick != nil {
		close(p.stopTick)
		p.stopTick = nil
	}
}

// emit calls fn with the current handlers on a fresh goroutine. Callers
// hold p.mu.
func (p *Player) emit(fn func(h Handlers)) {
	h := p.handlers
	go fn(h)
}

func (p *Player) emitError(err error) {
	p.emit(func(h Handlers) {
		if h.OnError != nil {
			h.OnError(err)
		}
	})
}
