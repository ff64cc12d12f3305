package scan

import (
	"errors"
	"image"
	"log/slog"
	"sync"

	"hexentour/pkg/event"
	"hexentour/pkg/metrics"
	"hexentour/pkg/station"
)

// ErrNotScanning is returned when a payload arrives outside a scan.
var ErrNotScanning = errors.New("scanner not active")

// Status is the scan screen state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusScanning Status = "scanning"
	StatusScanned  Status = "scanned"
	StatusWrong    Status = "wrong"
	StatusFailed   Status = "failed"
	StatusUnlocked Status = "unlocked"
)

const (
	msgScanned  = "Sie sind an einer neuen Station angekommen!"
	msgInvalid  = "Ungültiges QR-Code-Format erkannt."
	msgUnknown  = "Station nicht gefunden."
	msgMismatch = "Falscher QR-Code erkannt! Bitte scannen Sie den korrekten QR-Code."
	msgUnlocked = "Die Tour ist freigeschaltet."
)

// Result is what the scan screen shows.
type Result struct {
	Status    Status     `json:"status"`
	Expected  station.ID `json:"expected,omitempty"`
	StationID station.ID `json:"stationId,omitempty"`
	Message   string     `json:"message,omitempty"`
	Attempt   int        `json:"attempt"`
}

// Session is one visit to the scan screen. It can be started, stopped and
// retried any number of times.
type Session struct {
	catalog *station.Catalog
	current func() station.ID
	decoder Decoder
	metrics *metrics.Metrics

	mu      sync.Mutex
	result  Result
	onStart func(expect station.ID)
	changes event.Bus[Result]
}

// NewSession creates an idle session. current reports the visitor's
// position when a payload is validated.
func NewSession(cat *station.Catalog, current func() station.ID, dec Decoder, m *metrics.Metrics) *Session {
	if dec == nil {
		dec = NewQRDecoder()
	}
	return &Session{
		catalog: cat,
		current: current,
		decoder: dec,
		metrics: m,
		result:  Result{Status: StatusIdle},
	}
}

// OnStart sets the hook run whenever scanning (re)starts, e.g. to start
// the AR-side scanner.
func (s *Session) OnStart(fn func(expect station.ID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = fn
}

// Subscribe registers fn for result changes.
func (s *Session) Subscribe(fn func(Result)) event.Unsubscribe {
	return s.changes.Subscribe(fn)
}

// Result returns the current result.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Start begins scanning. An empty expect is derived from the position.
func (s *Session) Start(expect station.ID) Result {
	if expect == "" {
		expect = ExpectedNext(s.current())
	}
	return s.begin(expect, false)
}

// Retry clears the last outcome and scans again for the same station.
func (s *Session) Retry() Result {
	s.mu.Lock()
	expect := s.result.Expected
	s.mu.Unlock()
	if expect == "" {
		expect = ExpectedNext(s.current())
	}
	return s.begin(expect, true)
}

func (s *Session) begin(expect station.ID, retry bool) Result {
	s.mu.Lock()
	attempt := s.result.Attempt
	if retry {
		attempt++
	}
	s.result = Result{Status: StatusScanning, Expected: expect, Attempt: attempt}
	res := s.result
	hook := s.onStart
	s.mu.Unlock()

	slog.Debug("Scan: Scanning", "expect", expect, "attempt", attempt)
	if hook != nil {
		hook(expect)
	}
	s.changes.Publish(res)
	return res
}

// Stop ends scanning. Calling it when nothing is scanning is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.result.Status != StatusScanning {
		s.mu.Unlock()
		return
	}
	s.result.Status = StatusIdle
	res := s.result
	s.mu.Unlock()
	s.changes.Publish(res)
}

// Submit validates decoded QR text. Only the first payload of a scan is
// considered; the scanner stops on it whatever the outcome.
func (s *Session) Submit(raw string) (Result, error) {
	s.mu.Lock()
	if s.result.Status != StatusScanning {
		res := s.result
		s.mu.Unlock()
		return res, ErrNotScanning
	}

	p := ParsePayload(raw)
	res := Result{Expected: s.result.Expected, Attempt: s.result.Attempt}
	var verr error
	if p.Kind == KindUnlockTour {
		res.Status = StatusUnlocked
		res.Message = msgUnlocked
		s.metrics.ScanResult("unlock")
	} else {
		verr = Validate(s.catalog, s.current(), p.StationID)
		switch {
		case verr == nil:
			res.Status = StatusScanned
			res.StationID = p.StationID
			res.Message = msgScanned
			s.metrics.ScanResult("accepted")
		case errors.Is(verr, ErrInvalidPayload):
			res.Status = StatusWrong
			res.Message = msgInvalid
			s.metrics.ScanResult("invalid")
		case errors.Is(verr, station.ErrUnknownStation):
			res.Status = StatusWrong
			res.Message = msgUnknown
			s.metrics.ScanResult("unknown")
		default:
			res.Status = StatusWrong
			res.Message = msgMismatch
			s.metrics.ScanResult("mismatch")
		}
	}
	s.result = res
	s.mu.Unlock()

	if verr != nil {
		slog.Info("Scan: Rejected payload", "payload", raw, "error", verr)
	} else {
		slog.Info("Scan: Accepted payload", "payload", raw, "status", res.Status)
	}
	s.changes.Publish(res)
	return res, verr
}

// SubmitFrame decodes a camera frame and submits its text. A frame without
// a code leaves the session scanning and returns ErrNoCode.
func (s *Session) SubmitFrame(img image.Image) (Result, error) {
	if st := s.Result(); st.Status != StatusScanning {
		return st, ErrNotScanning
	}
	text, err := s.decoder.Decode(img)
	if err != nil {
		return s.Result(), err
	}
	return s.Submit(text)
}

// SubmitFrameBytes is SubmitFrame for an encoded png or jpeg frame.
func (s *Session) SubmitFrameBytes(data []byte) (Result, error) {
	if st := s.Result(); st.Status != StatusScanning {
		return st, ErrNotScanning
	}
	text, err := DecodeBytes(s.decoder, data)
	if err != nil {
		return s.Result(), err
	}
	return s.Submit(text)
}

// Fail ends the scan because the camera could not be used.
func (s *Session) Fail(err error) Result {
	s.mu.Lock()
	s.result = Result{
		Status:   StatusFailed,
		Expected: s.result.Expected,
		Attempt:  s.result.Attempt,
		Message:  CameraMessage(err),
	}
	res := s.result
	s.mu.Unlock()

	s.metrics.ScanResult("camera_error")
	slog.Warn("Scan: Camera failed", "error", err)
	s.changes.Publish(res)
	return res
}
