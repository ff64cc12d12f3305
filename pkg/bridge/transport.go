package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Transport delivers commands to the AR surface. The strategy is chosen
// once at startup.
type Transport interface {
	Send(cmd Command) error
	Name() string
}

// Controller is an in-process AR engine that exposes a direct API.
type Controller interface {
	LoadStation(id string)
	SetMode(mode Mode)
	PlayAudio()
	PauseAudio()
	SeekAudio(seconds float64)
	ShowModel2()
	HideModel2()
	PlayModel2()
	PauseModel2()
	StartQRScan(expect string)
	TakeSnapshot()
}

// Direct calls a Controller.
type Direct struct {
	ctrl Controller
}

// NewDirect wraps ctrl.
func NewDirect(ctrl Controller) *Direct {
	return &Direct{ctrl: ctrl}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Send(cmd Command) error {
	switch cmd.Type {
	case MsgLoadStation:
		d.ctrl.LoadStation(stringField(cmd.Payload, "stationId"))
	case MsgSetMode:
		d.ctrl.SetMode(Mode(stringField(cmd.Payload, "mode")))
	case MsgPlay:
		d.ctrl.PlayAudio()
	case MsgPause:
		d.ctrl.PauseAudio()
	case MsgSeek:
		t, _ := cmd.Payload["time"].(float64)
		d.ctrl.SeekAudio(t)
	case MsgShowModel2:
		d.ctrl.ShowModel2()
	case MsgHideModel2:
		d.ctrl.HideModel2()
	case MsgPlayModel2:
		d.ctrl.PlayModel2()
	case MsgPauseModel2:
		d.ctrl.PauseModel2()
	case MsgStartQRScan:
		d.ctrl.StartQRScan(stringField(cmd.Payload, "expect"))
	case MsgSnapshot:
		d.ctrl.TakeSnapshot()
	case MsgStatus:
		// Direct engines report state through events on their own
	default:
		return fmt.Errorf("direct: unsupported command %s", cmd.Type)
	}
	return nil
}

func stringField(p map[string]any, k string) string {
	s, _ := p[k].(string)
	return s
}

// Poster is a connected AR frame that accepts serialized messages.
type Poster interface {
	Post(data []byte) error
}

// Message posts JSON envelopes to the registered frame. Sends without a
// frame fail with ErrNoFrame.
type Message struct {
	mu    sync.RWMutex
	frame Poster
}

// NewMessage creates a transport with no frame registered.
func NewMessage() *Message {
	return &Message{}
}

func (m *Message) Name() string { return "message" }

// Register makes p the frame that receives commands.
func (m *Message) Register(p Poster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = p
}

// Unregister removes p if it is still the registered frame.
func (m *Message) Unregister(p Poster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == p {
		m.frame = nil
	}
}

// Connected reports whether a frame is registered.
func (m *Message) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frame != nil
}

func (m *Message) Send(cmd Command) error {
	m.mu.RLock()
	frame := m.frame
	m.mu.RUnlock()
	if frame == nil {
		return ErrNoFrame
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return frame.Post(data)
}

// Select returns a Direct transport when ctrl is non-nil, else fallback.
func Select(ctrl Controller, fallback Transport) Transport {
	if ctrl != nil {
		return NewDirect(ctrl)
	}
	return fallback
}
