package playback

import (
	"sync"
	"time"
)

// Suppressor ignores inbound AR audio events for a short window after a
// local action, so the AR surface echoing our own command back does not
// trigger another command.
type Suppressor struct {
	mu     sync.Mutex
	window time.Duration
	until  time.Time
	now    func() time.Time
}

// NewSuppressor creates a suppressor. now defaults to time.Now.
func NewSuppressor(window time.Duration, now func() time.Time) *Suppressor {
	if now == nil {
		now = time.Now
	}
	return &Suppressor{window: window, now: now}
}

// Arm starts a suppression window.
func (s *Suppressor) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until = s.now().Add(s.window)
}

// Active reports whether inbound events should be ignored right now.
func (s *Suppressor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.until)
}
