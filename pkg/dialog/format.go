package dialog

import "strings"

// Segment is one display line of a dialog. Speaker keeps the name as
// written so it can be rendered in bold.
type Segment struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// Format splits content into display segments, one per source line,
// separating a leading speaker name from the rest.
func Format(content string) []Segment {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	out := make([]Segment, 0, len(lines))
	for _, line := range lines {
		if m := speakerPrefix.FindStringSubmatch(line); m != nil && Speakers[m[1]] != "" {
			out = append(out, Segment{Speaker: m[1], Text: m[2]})
			continue
		}
		out = append(out, Segment{Text: line})
	}
	return out
}
