package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Resolve maps a catalog audio path such as "/audio/AR_02_03.mp3" onto a
// file below baseDir. Paths escaping baseDir are rejected.
func Resolve(baseDir, src string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(src, "/")))
	rel = strings.TrimPrefix(rel, "audio"+string(filepath.Separator))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("audio path %q outside media dir", src)
	}
	return filepath.Join(baseDir, rel), nil
}

// Decode opens an mp3 or wav file.
func Decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	streamer, format, err := mp3.Decode(f)
	if err == nil {
		return streamer, format, nil
	}

	// Reopen for the WAV attempt; a failed mp3 decode leaves the offset unknown
	f.Close()
	f, err = os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	streamer, format, err = wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("unsupported audio %s: %w", filepath.Base(path), err)
	}
	return streamer, format, nil
}

// Probe returns the duration of the audio file at path.
func Probe(path string) (time.Duration, error) {
	streamer, format, err := Decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
