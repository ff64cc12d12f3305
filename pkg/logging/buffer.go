package logging

import (
	"strings"
	"sync"
)

// LogCaptureWriter keeps the most recent line written to it.
type LogCaptureWriter struct {
	mu       sync.RWMutex
	lastLine string
}

var (
	// GlobalLogCapture holds the last server log line for /api/log/latest.
	GlobalLogCapture = &LogCaptureWriter{}
	// GlobalEventCapture holds the last tour event for /api/log/event.
	GlobalEventCapture = &LogCaptureWriter{}
)

func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastLine = strings.TrimRight(string(p), "\n")
	return len(p), nil
}

// GetLastLine returns the most recent line without its newline.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastLine
}
