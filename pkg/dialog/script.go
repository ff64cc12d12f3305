// Package dialog parses station dialog scripts into speaker-tagged lines
// and estimates when each line is spoken.
package dialog

import (
	"math"
	"regexp"
	"strings"
)

// DefaultWordsPerSecond is the assumed speaking rate.
const DefaultWordsPerSecond = 2.5

// Speaker is an upper-cased speaker name, or empty when unknown.
type Speaker string

const (
	Mephisto Speaker = "MEPHISTO"
	Holla    Speaker = "HOLLA"
)

// Speakers lists the names a script line may open with.
var Speakers = map[string]Speaker{
	"Mephisto": Mephisto,
	"Holla":    Holla,
}

// speakerPrefix matches a "Name:" opening. Only names in Speakers count.
var speakerPrefix = regexp.MustCompile(`^([A-Za-zäöüÄÖÜß]+):\s*(.*)$`)

// Line is one non-blank line of a script. Start and End are line indexes
// until Timed converts them to seconds. Open marks the last line, which
// runs until the audio ends.
type Line struct {
	Text    string
	Speaker Speaker
	Start   float64
	End     float64
	Open    bool
}

// ParseSpeaker returns the known speaker a line starts with, if any.
// Other "Word:" openings are ordinary text.
func ParseSpeaker(text string) Speaker {
	m := speakerPrefix.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	return Speakers[m[1]]
}

// Parse splits script into lines. A line without a speaker prefix continues
// the previous speaker.
func Parse(script string) []Line {
	var out []Line
	var current Speaker
	for _, raw := range strings.Split(script, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if sp := ParseSpeaker(text); sp != "" {
			current = sp
		}
		i := float64(len(out))
		out = append(out, Line{Text: text, Speaker: current, Start: i, End: i + 1})
	}
	if len(out) > 0 {
		out[len(out)-1].Open = true
	}
	return out
}

// ValidDuration reports whether d is a usable media duration.
func ValidDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

// Timed assigns time windows from word counts. Windows are contiguous and
// an end past total is clamped to total. It returns nil until a valid
// duration is known.
func Timed(lines []Line, total, wordsPerSecond float64) []Line {
	if len(lines) == 0 || !ValidDuration(total) {
		return nil
	}
	if wordsPerSecond <= 0 {
		wordsPerSecond = DefaultWordsPerSecond
	}

	out := make([]Line, len(lines))
	t := 0.0
	for i, l := range lines {
		est := float64(len(strings.Fields(l.Text))) / wordsPerSecond
		l.Start = t
		l.Open = i == len(lines)-1
		if l.Open {
			l.End = 0
		} else {
			l.End = math.Min(t+est, total)
		}
		t += est
		out[i] = l
	}
	return out
}

// SpeakerAt returns the speaker at t: the first line whose window contains
// t, otherwise the last line that started before t.
func SpeakerAt(lines []Line, t float64) Speaker {
	var active *Line
	for i := range lines {
		l := &lines[i]
		if l.Start > t {
			break
		}
		active = l
		if l.Open || t < l.End {
			break
		}
	}
	if active == nil {
		return ""
	}
	return active.Speaker
}
