package tour

import (
	"hexentour/pkg/bridge"
	"hexentour/pkg/geo"
	"hexentour/pkg/playback"
	"hexentour/pkg/progress"
	"hexentour/pkg/scan"
)

// Push types sent to the visitor page.
const (
	PushNavigate = "NAVIGATE"
	PushProgress = "PROGRESS"
	PushAudio    = "AUDIO"
	PushScan     = "SCAN"
	PushGate     = "GATE"
	PushArrival  = "ARRIVAL"
	PushAR       = "AR_STATE"
	PushStatus   = "STATUS"
)

// Push is one message for the visitor page.
type Push struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Navigate is the payload of a NAVIGATE push.
type Navigate struct {
	Path string `json:"path"`
}

// GateState is the payload of a GATE push.
type GateState struct {
	Open   bool   `json:"open"`
	Reason string `json:"reason,omitempty"`
}

// Status is everything the visitor page needs to render after a reconnect.
type Status struct {
	Progress progress.State `json:"progress"`
	Route    string         `json:"route"`
	Target   string         `json:"target"`
	Audio    playback.State `json:"audio"`
	Scan     scan.Result    `json:"scan"`
	Gate     GateState      `json:"gate"`
	AR       bridge.State   `json:"ar"`
	Arrival  *geo.Arrival   `json:"arrival,omitempty"`
}
