// Package bridge carries commands to the AR surface and normalizes the
// events it reports back.
package bridge

import (
	"encoding/json"
	"errors"
)

// Outbound message types.
const (
	MsgLoadStation = "MC_LOAD_STATION"
	MsgSetMode     = "MC_SET_MODE"
	MsgPlay        = "MC_PLAY"
	MsgPause       = "MC_PAUSE"
	MsgSeek        = "MC_SEEK"
	MsgShowModel2  = "MC_SHOW1"
	MsgHideModel2  = "MC_HIDE1"
	MsgPlayModel2  = "MC_PLAY1"
	MsgPauseModel2 = "MC_PAUSE1"
	MsgStartQRScan = "MC_START_QR"
	MsgSnapshot    = "MC_SNAPSHOT"
	MsgStatus      = "MC_STATUS"
)

// Inbound message types.
const (
	MsgReady         = "MC_READY"
	MsgState         = "MC_STATE"
	MsgAudioPlay     = "MC_AUDIO_PLAY"
	MsgAudioPause    = "MC_AUDIO_PAUSE"
	MsgAudioProgress = "MC_AUDIO_PROGRESS"
	MsgQR            = "mc:qr"
	MsgSnapshotData  = "mc:snapshot"
	MsgStationReady  = "mc:stationReady"
)

// Mode is the AR presentation mode.
type Mode string

const (
	ModeWelcome Mode = "welcome"
	ModeStation Mode = "station"
)

var (
	// ErrNoFrame means no AR surface is registered to receive commands.
	ErrNoFrame = errors.New("no AR frame registered")
	// ErrForeignOrigin rejects messages from a different origin than the page.
	ErrForeignOrigin = errors.New("message from foreign origin")
	// ErrMalformed rejects messages that are not typed JSON objects.
	ErrMalformed = errors.New("malformed bridge message")
)

// Command is one outbound instruction. Payload fields are flattened next
// to "type" on the wire.
type Command struct {
	Type    string
	Payload map[string]any
}

// MarshalJSON encodes the command as a flat envelope.
func (c Command) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Payload)+1)
	for k, v := range c.Payload {
		m[k] = v
	}
	m["type"] = c.Type
	return json.Marshal(m)
}

// State is the AR surface's last reported status.
type State struct {
	Ready   bool `json:"ready"`
	Playing bool `json:"playing"`
}

// Progress is an AR-side audio position report in seconds.
type Progress struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
}

type inbound struct {
	Type      string          `json:"type"`
	Ready     json.RawMessage `json:"ready"`
	Playing   json.RawMessage `json:"playing"`
	Time      *float64        `json:"time"`
	Duration  *float64        `json:"duration"`
	StationID json.RawMessage `json:"stationId"`
	Payload   json.RawMessage `json:"payload"`
	URL       json.RawMessage `json:"url"`
	Data      json.RawMessage `json:"data"`
	Detail    json.RawMessage `json:"detail"`
}

// optionalBool decodes raw only when it holds a JSON boolean.
func optionalBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return false, false
	}
	return b, true
}

// qrText picks the first string-valued carrier of a scanned payload.
func (m inbound) qrText() (string, bool) {
	for _, raw := range []json.RawMessage{m.StationID, m.Payload, m.URL, m.Detail} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
		// Nested {stationId, url}
		var nested struct {
			StationID string `json:"stationId"`
			URL       string `json:"url"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil {
			if nested.StationID != "" {
				return nested.StationID, true
			}
			if nested.URL != "" {
				return nested.URL, true
			}
		}
	}
	return "", false
}

// snapshotData returns the raw snapshot carrier.
func (m inbound) snapshotData() json.RawMessage {
	if len(m.Data) > 0 {
		return m.Data
	}
	if len(m.Detail) > 0 {
		return m.Detail
	}
	return m.Payload
}
