package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hexentour/pkg/audio"
	"hexentour/pkg/bridge"
	"hexentour/pkg/persist"
	"hexentour/pkg/station"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeMedia struct {
	mu       sync.Mutex
	h        audio.Handlers
	src      string
	loadErr  error
	duration float64
	time     float64
	paused   bool
	plays    int
	seeks    []float64
}

func newFakeMedia(d float64) *fakeMedia {
	return &fakeMedia{duration: d, paused: true}
}

func (m *fakeMedia) SetHandlers(h audio.Handlers) { m.h = h }

func (m *fakeMedia) Load(src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	m.src = src
	m.time = 0
	m.paused = true
	return nil
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
	m.plays++
	return nil
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

func (m *fakeMedia) Seek(s float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time = s
	m.seeks = append(m.seeks, s)
	return nil
}

func (m *fakeMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

func (m *fakeMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *fakeMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *fakeMedia) Seeks() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.seeks...)
}

// tick simulates the player advancing to t.
func (m *fakeMedia) tick(t float64) {
	m.mu.Lock()
	m.time = t
	m.mu.Unlock()
	m.h.OnTimeUpdate(t)
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Send(cmd bridge.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, cmd.Type)
	return nil
}

func (r *recordingTransport) Take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

type memResume struct {
	mu      sync.Mutex
	rec     *persist.AudioResume
	cleared int
}

func (r *memResume) Load(context.Context) (persist.AudioResume, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return persist.AudioResume{}, false
	}
	return *r.rec, true
}

func (r *memResume) Save(_ context.Context, rec persist.AudioResume) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec = &rec
}

func (r *memResume) Clear(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec = nil
	r.cleared++
}

func (r *memResume) Get() *persist.AudioResume {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec
}

var dualStation = station.Station{
	ID:          "s02",
	Title:       "Zwiegespräch",
	DialogAudio: "/audio/s02.mp3",
	DialogContent: "MEPHISTO: eins zwei drei vier fünf\n" +
		"HOLLA: sechs sieben acht neun zehn",
	DualModel: &station.DualModel{Primary: "MEPHISTO", Secondary: "HOLLA"},
}

var plainStation = station.Station{
	ID:            "s05",
	Title:         "Allein",
	DialogAudio:   "/audio/s05.mp3",
	DialogContent: "MEPHISTO: nur ich",
}

type harness struct {
	sync   *Synchronizer
	media  *fakeMedia
	tr     *recordingTransport
	ar     *bridge.Bridge
	resume *memResume
	clock  *fakeClock
}

func newHarness(t *testing.T, duration float64) *harness {
	t.Helper()
	h := &harness{
		media:  newFakeMedia(duration),
		tr:     &recordingTransport{},
		resume: &memResume{},
		clock:  &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	h.ar = bridge.New(h.tr, nil)
	cfg := DefaultConfig()
	cfg.Now = h.clock.Now
	h.sync = NewSynchronizer(h.media, h.ar, h.resume, nil, cfg)
	t.Cleanup(h.sync.Close)
	return h
}

// settle moves past the echo window.
func (h *harness) settle() { h.clock.Advance(time.Second) }

func TestTrack_DualStationShowsSecondModel(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), dualStation))

	assert.Equal(t, []string{bridge.MsgShowModel2}, h.tr.Take())
	st := h.sync.Snapshot()
	assert.Equal(t, station.ID("s02"), st.StationID)
	assert.Equal(t, 10.0, st.Duration)
	assert.False(t, st.Playing)
	assert.Len(t, st.Caption, 3)
}

func TestTrack_LoadFailure(t *testing.T) {
	h := newHarness(t, 10)
	h.media.loadErr = errors.New("file not found")

	err := h.sync.Track(context.Background(), plainStation)
	require.ErrorIs(t, err, ErrMediaUnavailable)
	assert.Contains(t, h.sync.Snapshot().Error, "file not found")
}

func TestPlayPauseMirrorToAR(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	h.tr.Take()

	require.NoError(t, h.sync.Play())
	assert.False(t, h.media.Paused())
	assert.True(t, h.sync.Snapshot().Playing)

	h.sync.Pause()
	assert.True(t, h.media.Paused())
	assert.Equal(t, []string{bridge.MsgPlay, bridge.MsgPause}, h.tr.Take())
}

func TestPlay_WithoutTrack(t *testing.T) {
	h := newHarness(t, 10)
	assert.ErrorIs(t, h.sync.Play(), ErrNoTrack)
	assert.ErrorIs(t, h.sync.Seek(3), ErrNoTrack)
}

func TestSeek_EchoedProgressDoesNotReseek(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	h.tr.Take()

	require.NoError(t, h.sync.Seek(4))
	assert.Equal(t, []string{bridge.MsgSeek}, h.tr.Take())

	// The AR surface reports a stale position inside the echo window.
	h.ar.EmitAudioProgress(1, 10)
	assert.Equal(t, []float64{4}, h.media.Seeks())
	assert.Empty(t, h.tr.Take())

	h.settle()
	h.ar.EmitAudioProgress(1, 10)
	assert.Equal(t, []float64{4, 1}, h.media.Seeks())
	assert.Empty(t, h.tr.Take(), "remote progress must never produce AR commands")
}

func TestSeek_Clamped(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))

	require.NoError(t, h.sync.Seek(42))
	require.NoError(t, h.sync.Seek(-3))
	assert.Equal(t, []float64{10, 0}, h.media.Seeks())
}

func TestRemoteProgress_Tolerances(t *testing.T) {
	tests := []struct {
		name      string
		remote    bridge.Progress
		wantSeek  bool
		wantDurat float64
	}{
		{"within position tolerance", bridge.Progress{Time: 2.4, Duration: 10}, false, 10},
		{"beyond position tolerance", bridge.Progress{Time: 2.6, Duration: 10}, true, 10},
		{"small duration drift ignored", bridge.Progress{Time: 2, Duration: 10.05}, false, 10},
		{"large duration drift adopted", bridge.Progress{Time: 2, Duration: 12}, false, 12},
		{"zero duration ignored", bridge.Progress{Time: 2, Duration: 0}, false, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10)
			require.NoError(t, h.sync.Track(context.Background(), plainStation))
			h.media.tick(2)
			h.settle()

			h.ar.EmitAudioProgress(tt.remote.Time, tt.remote.Duration)

			seeks := h.media.Seeks()
			if tt.wantSeek {
				assert.Equal(t, []float64{tt.remote.Time}, seeks)
			} else {
				assert.Empty(t, seeks)
			}
			assert.Equal(t, tt.wantDurat, h.sync.Snapshot().Duration)
		})
	}
}

func TestRemotePlayPause(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	h.tr.Take()

	h.ar.EmitAudioPlay()
	assert.False(t, h.media.Paused())
	assert.True(t, h.sync.Snapshot().Playing)

	h.ar.EmitAudioPause()
	assert.True(t, h.media.Paused())
	assert.False(t, h.sync.Snapshot().Playing)
	assert.Empty(t, h.tr.Take())
}

func TestRemotePause_SuppressedAfterLocalPlay(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	require.NoError(t, h.sync.Play())

	h.ar.EmitAudioPause()
	assert.False(t, h.media.Paused())
	assert.True(t, h.sync.Snapshot().Playing)
}

func TestSpeakerSwitching(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), dualStation))
	require.NoError(t, h.sync.Play())
	h.tr.Take()

	h.media.tick(1)
	assert.Empty(t, h.tr.Take(), "primary speaker stays on the primary model")

	h.media.tick(3)
	assert.Equal(t, []string{bridge.MsgPause, bridge.MsgPlayModel2}, h.tr.Take())
	assert.Equal(t, "HOLLA", string(h.sync.Snapshot().Speaker))

	h.media.tick(4)
	assert.Empty(t, h.tr.Take(), "switching is edge triggered")

	require.NoError(t, h.sync.Seek(0.5))
	assert.Equal(t, []string{bridge.MsgSeek, bridge.MsgPauseModel2, bridge.MsgPlay}, h.tr.Take())
}

func TestSpeakerSwitching_WaitsForDuration(t *testing.T) {
	h := newHarness(t, math.NaN())
	require.NoError(t, h.sync.Track(context.Background(), dualStation))
	require.NoError(t, h.sync.Play())
	h.tr.Take()

	h.media.tick(3)
	assert.Empty(t, h.tr.Take())

	h.media.h.OnDurationChange(10)
	assert.Equal(t, []string{bridge.MsgPause, bridge.MsgPlayModel2}, h.tr.Take())
}

func TestSpeakerSwitching_IgnoredWhilePaused(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), dualStation))
	h.tr.Take()

	require.NoError(t, h.sync.Seek(3))
	assert.Equal(t, []string{bridge.MsgSeek}, h.tr.Take())
}

func TestResume(t *testing.T) {
	h := newHarness(t, 10)
	h.resume.rec = &persist.AudioResume{StationID: "s05", CurrentTime: 6.5, Playing: true}

	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	assert.Equal(t, []float64{6.5}, h.media.Seeks())
	assert.False(t, h.media.Paused())
	assert.Equal(t, 6.5, h.sync.Snapshot().CurrentTime)
}

func TestResume_OtherStationDiscarded(t *testing.T) {
	h := newHarness(t, 10)
	h.resume.rec = &persist.AudioResume{StationID: "s03", CurrentTime: 6.5}

	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	assert.Empty(t, h.media.Seeks())
	assert.Nil(t, h.resume.Get())
}

func TestResume_SavedOnWholeSeconds(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))

	h.media.tick(1.2)
	require.NotNil(t, h.resume.Get())
	assert.Equal(t, 1.2, h.resume.Get().CurrentTime)

	h.media.tick(1.7)
	assert.Equal(t, 1.2, h.resume.Get().CurrentTime)

	h.media.tick(2.1)
	assert.Equal(t, 2.1, h.resume.Get().CurrentTime)
}

func TestEnded_ClearsResume(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	require.NoError(t, h.sync.Play())

	h.media.h.OnEnded()
	assert.Nil(t, h.resume.Get())
	st := h.sync.Snapshot()
	assert.False(t, st.Playing)
	assert.Equal(t, 10.0, st.CurrentTime)
}

func TestTeardown_PausesAndHidesModel(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.sync.Track(context.Background(), dualStation))
	require.NoError(t, h.sync.Play())
	h.tr.Take()

	h.sync.Teardown()
	assert.True(t, h.media.Paused())
	assert.Equal(t, []string{bridge.MsgHideModel2}, h.tr.Take())
	assert.Empty(t, h.sync.Snapshot().StationID)
}

func TestOnUpdate(t *testing.T) {
	h := newHarness(t, 10)
	var got []State
	unsub := h.sync.OnUpdate(func(s State) { got = append(got, s) })
	defer unsub()

	require.NoError(t, h.sync.Track(context.Background(), plainStation))
	require.NoError(t, h.sync.Play())
	require.NotEmpty(t, got)
	assert.True(t, got[len(got)-1].Playing)
}

func TestSuppressor(t *testing.T) {
	c := &fakeClock{t: time.Unix(0, 0)}
	s := NewSuppressor(100*time.Millisecond, c.Now)
	assert.False(t, s.Active())

	s.Arm()
	assert.True(t, s.Active())
	c.Advance(99 * time.Millisecond)
	assert.True(t, s.Active())
	c.Advance(time.Millisecond)
	assert.False(t, s.Active())
}
