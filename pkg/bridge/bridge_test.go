package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "http://localhost:3000"

type recordingPoster struct {
	mu   sync.Mutex
	msgs []map[string]any
	fail bool
}

func (r *recordingPoster) Post(data []byte) error {
	if r.fail {
		return errors.New("socket closed")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func (r *recordingPoster) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m["type"].(string))
	}
	return out
}

type fakeController struct {
	calls []string
	seek  float64
	id    string
}

func (f *fakeController) LoadStation(id string)  { f.calls = append(f.calls, "load"); f.id = id }
func (f *fakeController) SetMode(m Mode)         { f.calls = append(f.calls, "mode:"+string(m)) }
func (f *fakeController) PlayAudio()             { f.calls = append(f.calls, "play") }
func (f *fakeController) PauseAudio()            { f.calls = append(f.calls, "pause") }
func (f *fakeController) SeekAudio(t float64)    { f.calls = append(f.calls, "seek"); f.seek = t }
func (f *fakeController) ShowModel2()            { f.calls = append(f.calls, "show2") }
func (f *fakeController) HideModel2()            { f.calls = append(f.calls, "hide2") }
func (f *fakeController) PlayModel2()            { f.calls = append(f.calls, "play2") }
func (f *fakeController) PauseModel2()           { f.calls = append(f.calls, "pause2") }
func (f *fakeController) StartQRScan(exp string) { f.calls = append(f.calls, "qr:"+exp) }
func (f *fakeController) TakeSnapshot()          { f.calls = append(f.calls, "snap") }

func TestMessageTransportEnvelopes(t *testing.T) {
	mt := NewMessage()
	frame := &recordingPoster{}
	mt.Register(frame)
	b := New(mt, nil)

	b.PlayAudio()
	b.SeekAudio(12.5)
	b.LoadStation("s03")
	b.SetMode(ModeStation)
	b.ShowModel2()
	b.PauseModel2()
	b.StartQRScan("s04")

	assert.Equal(t, []string{MsgPlay, MsgSeek, MsgLoadStation, MsgSetMode, MsgShowModel2, MsgPauseModel2, MsgStartQRScan}, frame.types())
	assert.Equal(t, 12.5, frame.msgs[1]["time"])
	assert.Equal(t, "s03", frame.msgs[2]["stationId"])
	assert.Equal(t, "station", frame.msgs[3]["mode"])
	assert.Equal(t, "s04", frame.msgs[6]["expect"])
	assert.Equal(t, "message", b.TransportName())
}

func TestMessageTransportWithoutFrameDrops(t *testing.T) {
	mt := NewMessage()
	b := New(mt, nil)

	assert.NotPanics(t, func() { b.PlayAudio() })
	assert.ErrorIs(t, mt.Send(Command{Type: MsgPlay}), ErrNoFrame)

	frame := &recordingPoster{}
	mt.Register(frame)
	assert.True(t, mt.Connected())

	other := &recordingPoster{}
	mt.Unregister(other)
	assert.True(t, mt.Connected(), "unregistering a stale frame keeps the current one")

	mt.Unregister(frame)
	assert.False(t, mt.Connected())
}

func TestDirectTransport(t *testing.T) {
	ctrl := &fakeController{}
	b := New(Select(ctrl, NewMessage()), nil)
	assert.Equal(t, "direct", b.TransportName())

	b.LoadStation("s02")
	b.SetMode(ModeWelcome)
	b.PlayAudio()
	b.SeekAudio(3)
	b.PlayModel2()
	b.StartQRScan("")
	b.TakeSnapshot()
	b.RequestStatus()

	assert.Equal(t, []string{"load", "mode:welcome", "play", "seek", "play2", "qr:", "snap"}, ctrl.calls)
	assert.Equal(t, "s02", ctrl.id)
	assert.Equal(t, 3.0, ctrl.seek)

	assert.Error(t, NewDirect(ctrl).Send(Command{Type: "MC_BOGUS"}))
	assert.Equal(t, "message", Select(nil, NewMessage()).Name())
}

func TestHandleMessageOrigin(t *testing.T) {
	b := New(NewMessage(), nil)
	plays := 0
	b.OnAudioPlay(func() { plays++ })

	err := b.HandleMessage("https://evil.example", origin, []byte(`{"type":"MC_AUDIO_PLAY"}`))
	assert.ErrorIs(t, err, ErrForeignOrigin)
	assert.Equal(t, 0, plays)

	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_AUDIO_PLAY"}`)))
	assert.Equal(t, 1, plays)

	assert.ErrorIs(t, b.HandleMessage(origin, origin, []byte(`"hello"`)), ErrMalformed)
	assert.ErrorIs(t, b.HandleMessage(origin, origin, []byte(`{"ready":true}`)), ErrMalformed)
	assert.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"SOMETHING_NEW"}`)))
}

func TestHandleMessageState(t *testing.T) {
	b := New(NewMessage(), nil)
	readies := 0
	var states []State
	b.OnReady(func() { readies++ })
	b.OnState(func(s State) { states = append(states, s) })

	assert.Equal(t, State{Ready: false, Playing: true}, b.State())

	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_READY"}`)))
	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_READY"}`)))
	assert.Equal(t, 1, readies, "ready fires on the transition only")

	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_STATE","playing":false}`)))
	assert.Equal(t, State{Ready: true, Playing: false}, b.State())

	// Non-boolean fields are ignored
	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_STATE","ready":"yes"}`)))
	assert.Equal(t, State{Ready: true, Playing: false}, b.State())
	assert.Len(t, states, 4)

	b.ResetState()
	assert.False(t, b.State().Ready)
	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_STATE","ready":true}`)))
	assert.Equal(t, 2, readies)
}

func TestHandleMessageAudioProgress(t *testing.T) {
	b := New(NewMessage(), nil)
	var got []Progress
	b.OnAudioProgress(func(p Progress) { got = append(got, p) })

	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_AUDIO_PROGRESS","time":4.2,"duration":60}`)))
	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_AUDIO_PROGRESS","time":5}`)))
	assert.Error(t, b.HandleMessage(origin, origin, []byte(`{"type":"MC_AUDIO_PROGRESS"}`)))

	assert.Equal(t, []Progress{{Time: 4.2, Duration: 60}, {Time: 5}}, got)
}

func TestHandleMessageQR(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"station id", `{"type":"mc:qr","stationId":"s04"}`, "s04"},
		{"payload", `{"type":"mc:qr","payload":"unlock-tour"}`, "unlock-tour"},
		{"url", `{"type":"mc:qr","url":"https://tour.example/?station=s02"}`, "https://tour.example/?station=s02"},
		{"nested detail", `{"type":"mc:qr","detail":{"stationId":"s07","url":"x"}}`, "s07"},
		{"precedence", `{"type":"mc:qr","stationId":"s01","payload":"s09"}`, "s01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(NewMessage(), nil)
			var got string
			b.OnQR(func(p string) { got = p })
			require.NoError(t, b.HandleMessage(origin, origin, []byte(tt.msg)))
			assert.Equal(t, tt.want, got)
		})
	}

	b := New(NewMessage(), nil)
	assert.ErrorIs(t, b.HandleMessage(origin, origin, []byte(`{"type":"mc:qr"}`)), ErrMalformed)
}

func TestHandleMessageSnapshotAndStationReady(t *testing.T) {
	b := New(NewMessage(), nil)
	var snap json.RawMessage
	ready := false
	b.OnSnapshot(func(d json.RawMessage) { snap = d })
	b.OnStationReady(func() { ready = true })

	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"mc:snapshot","data":"data:image/png;base64,AAAA"}`)))
	assert.JSONEq(t, `"data:image/png;base64,AAAA"`, string(snap))
	assert.Error(t, b.HandleMessage(origin, origin, []byte(`{"type":"mc:snapshot"}`)))

	require.NoError(t, b.HandleMessage(origin, origin, []byte(`{"type":"mc:stationReady"}`)))
	assert.True(t, ready)
}

func TestUnsubscribe(t *testing.T) {
	b := New(NewMessage(), nil)
	n := 0
	unsub := b.OnAudioPause(func() { n++ })
	b.EmitAudioPause()
	unsub()
	b.EmitAudioPause()
	assert.Equal(t, 1, n)
}

func TestGate(t *testing.T) {
	t.Run("ready before timeout", func(t *testing.T) {
		g := NewGate(time.Hour)
		var reasons []string
		g.OnOpen(func(r string) { reasons = append(reasons, r) })

		g.Arm()
		open, _ := g.Open()
		assert.False(t, open)

		g.Signal()
		g.Signal()
		open, reason := g.Open()
		assert.True(t, open)
		assert.Equal(t, OpenedReady, reason)
		assert.Equal(t, []string{OpenedReady}, reasons)
		g.Stop()
	})

	t.Run("timeout fallback", func(t *testing.T) {
		g := NewGate(20 * time.Millisecond)
		opened := make(chan string, 1)
		g.OnOpen(func(r string) { opened <- r })
		g.Arm()

		select {
		case r := <-opened:
			assert.Equal(t, OpenedTimeout, r)
		case <-time.After(2 * time.Second):
			t.Fatal("gate did not open on timeout")
		}
	})

	t.Run("rearm closes again", func(t *testing.T) {
		g := NewGate(time.Hour)
		g.Arm()
		g.Signal()
		g.Arm()
		open, _ := g.Open()
		assert.False(t, open)
		g.Stop()
	})
}
