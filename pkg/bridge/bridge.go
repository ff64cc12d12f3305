package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"hexentour/pkg/event"
	"hexentour/pkg/logging"
	"hexentour/pkg/metrics"
)

// Bridge is the single point through which the tour talks to the AR
// surface. Commands are fire-and-forget; failures are logged and dropped.
type Bridge struct {
	transport Transport
	metrics   *metrics.Metrics

	mu    sync.RWMutex
	state State

	audioPlay     event.Bus[struct{}]
	audioPause    event.Bus[struct{}]
	audioProgress event.Bus[Progress]
	ready         event.Bus[struct{}]
	stateChanged  event.Bus[State]
	qr            event.Bus[string]
	snapshot      event.Bus[json.RawMessage]
	stationReady  event.Bus[struct{}]
}

// New creates a bridge over t.
func New(t Transport, m *metrics.Metrics) *Bridge {
	return &Bridge{transport: t, metrics: m, state: State{Playing: true}}
}

// TransportName returns the active transport strategy.
func (b *Bridge) TransportName() string {
	return b.transport.Name()
}

func (b *Bridge) send(cmd Command) {
	if err := b.transport.Send(cmd); err != nil {
		slog.Warn("Bridge: Dropped command", "type", cmd.Type, "transport", b.transport.Name(), "error", err)
		b.metrics.BridgeDropped(cmd.Type)
		return
	}
	slog.Debug("Bridge: Sent command", "type", cmd.Type, "transport", b.transport.Name())
	b.metrics.BridgeCommand(cmd.Type, b.transport.Name())
}

// LoadStation tells the AR surface which station content to show.
func (b *Bridge) LoadStation(id string) {
	b.send(Command{Type: MsgLoadStation, Payload: map[string]any{"stationId": id}})
}

// SetMode switches the AR surface between its map and station modes.
func (b *Bridge) SetMode(mode Mode) {
	b.send(Command{Type: MsgSetMode, Payload: map[string]any{"mode": string(mode)}})
}

// PlayAudio and PauseAudio drive the primary model's audio.
func (b *Bridge) PlayAudio()  { b.send(Command{Type: MsgPlay}) }
func (b *Bridge) PauseAudio() { b.send(Command{Type: MsgPause}) }

// SeekAudio moves the primary model's audio to seconds.
func (b *Bridge) SeekAudio(seconds float64) {
	b.send(Command{Type: MsgSeek, Payload: map[string]any{"time": seconds}})
}

// Second model controls, used by dual-model stations.
func (b *Bridge) ShowModel2()  { b.send(Command{Type: MsgShowModel2}) }
func (b *Bridge) HideModel2()  { b.send(Command{Type: MsgHideModel2}) }
func (b *Bridge) PlayModel2()  { b.send(Command{Type: MsgPlayModel2}) }
func (b *Bridge) PauseModel2() { b.send(Command{Type: MsgPauseModel2}) }

// StartQRScan asks the AR surface to scan, optionally hinting the expected id.
func (b *Bridge) StartQRScan(expect string) {
	var payload map[string]any
	if expect != "" {
		payload = map[string]any{"expect": expect}
	}
	b.send(Command{Type: MsgStartQRScan, Payload: payload})
}

func (b *Bridge) TakeSnapshot() { b.send(Command{Type: MsgSnapshot}) }

// RequestStatus asks the surface for an MC_STATE report.
func (b *Bridge) RequestStatus() { b.send(Command{Type: MsgStatus}) }

// State returns the last reported AR state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// ResetState forgets readiness, e.g. when the frame reconnects.
func (b *Bridge) ResetState() {
	b.mu.Lock()
	b.state.Ready = false
	st := b.state
	b.mu.Unlock()
	b.stateChanged.Publish(st)
}

// Subscriptions. Each returns a function that removes the listener.

func (b *Bridge) OnAudioPlay(fn func()) event.Unsubscribe {
	return b.audioPlay.Subscribe(func(struct{}) { fn() })
}

func (b *Bridge) OnAudioPause(fn func()) event.Unsubscribe {
	return b.audioPause.Subscribe(func(struct{}) { fn() })
}

func (b *Bridge) OnAudioProgress(fn func(Progress)) event.Unsubscribe {
	return b.audioProgress.Subscribe(fn)
}

func (b *Bridge) OnReady(fn func()) event.Unsubscribe {
	return b.ready.Subscribe(func(struct{}) { fn() })
}

func (b *Bridge) OnState(fn func(State)) event.Unsubscribe {
	return b.stateChanged.Subscribe(fn)
}

func (b *Bridge) OnQR(fn func(payload string)) event.Unsubscribe {
	return b.qr.Subscribe(fn)
}

func (b *Bridge) OnSnapshot(fn func(data json.RawMessage)) event.Unsubscribe {
	return b.snapshot.Subscribe(fn)
}

func (b *Bridge) OnStationReady(fn func()) event.Unsubscribe {
	return b.stationReady.Subscribe(func(struct{}) { fn() })
}

// Emitters used by direct engines that report through Go calls.

func (b *Bridge) EmitAudioPlay()  { b.audioPlay.Publish(struct{}{}) }
func (b *Bridge) EmitAudioPause() { b.audioPause.Publish(struct{}{}) }

func (b *Bridge) EmitAudioProgress(t, d float64) {
	b.audioProgress.Publish(Progress{Time: t, Duration: d})
}

// HandleMessage validates and dispatches a message posted by the AR frame.
// Messages whose origin differs from pageOrigin are rejected.
func (b *Bridge) HandleMessage(origin, pageOrigin string, data []byte) error {
	if origin != pageOrigin {
		slog.Debug("Bridge: Ignoring message from different origin", "origin", origin)
		return fmt.Errorf("%w: %s", ErrForeignOrigin, origin)
	}

	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		return ErrMalformed
	}
	b.metrics.BridgeInbound(msg.Type)

	switch msg.Type {
	case MsgReady:
		b.updateState(func(s *State) { s.Ready = true })
	case MsgState:
		b.updateState(func(s *State) {
			if v, ok := optionalBool(msg.Ready); ok {
				s.Ready = v
			}
			if v, ok := optionalBool(msg.Playing); ok {
				s.Playing = v
			}
		})
	case MsgAudioPlay:
		b.EmitAudioPlay()
	case MsgAudioPause:
		b.EmitAudioPause()
	case MsgAudioProgress:
		if msg.Time == nil {
			return fmt.Errorf("%w: progress without time", ErrMalformed)
		}
		d := 0.0
		if msg.Duration != nil {
			d = *msg.Duration
		}
		logging.TraceDefault("Bridge: Audio progress", "time", *msg.Time, "duration", d)
		b.EmitAudioProgress(*msg.Time, d)
	case MsgQR:
		text, ok := msg.qrText()
		if !ok {
			return fmt.Errorf("%w: qr without payload", ErrMalformed)
		}
		b.qr.Publish(text)
	case MsgSnapshotData:
		raw := msg.snapshotData()
		if len(raw) == 0 {
			return fmt.Errorf("%w: snapshot without data", ErrMalformed)
		}
		b.snapshot.Publish(raw)
	case MsgStationReady:
		b.stationReady.Publish(struct{}{})
	default:
		slog.Debug("Bridge: Unhandled message", "type", msg.Type)
	}
	return nil
}

func (b *Bridge) updateState(fn func(s *State)) {
	b.mu.Lock()
	wasReady := b.state.Ready
	fn(&b.state)
	st := b.state
	b.mu.Unlock()

	b.stateChanged.Publish(st)
	if st.Ready && !wasReady {
		b.ready.Publish(struct{}{})
	}
}
