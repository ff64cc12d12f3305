// Package caption splits a dialog script into three-line caption chunks
// and picks the chunk matching the audio position.
package caption

import (
	"math"
	"strings"
	"unicode/utf8"
)

// LinesPerChunk is the number of lines shown at once.
const LinesPerChunk = 3

// charWidth is the average glyph width relative to the font size.
const charWidth = 0.6

// Layout describes the caption box.
type Layout struct {
	Width    float64
	FontSize float64
	Padding  float64
}

// DefaultLayout is used when the client has not reported its width.
var DefaultLayout = Layout{Width: 600, FontSize: 16, Padding: 48}

// CharsPerLine estimates how many characters fit on one line. Never less
// than 1.
func (l Layout) CharsPerLine() int {
	if l.FontSize <= 0 {
		return 1
	}
	n := int(math.Floor((l.Width - l.Padding) / (l.FontSize * charWidth)))
	if n < 1 {
		return 1
	}
	return n
}

// Split wraps script into lines of at most CharsPerLine runes and groups
// them into chunks of LinesPerChunk. Words longer than a line are broken.
// The result depends only on its inputs.
func Split(script string, l Layout) [][]string {
	width := l.CharsPerLine()
	var lines []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			lines = append(lines, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(script) {
		for _, piece := range breakWord(word, width) {
			n := utf8.RuneCountInString(piece)
			switch {
			case curLen == 0:
			case curLen+1+n <= width:
				cur.WriteByte(' ')
				curLen++
			default:
				flush()
			}
			cur.WriteString(piece)
			curLen += n
		}
	}
	flush()

	var chunks [][]string
	for i := 0; i < len(lines); i += LinesPerChunk {
		end := min(i+LinesPerChunk, len(lines))
		chunks = append(chunks, lines[i:end])
	}
	return chunks
}

func breakWord(word string, width int) []string {
	runes := []rune(word)
	if len(runes) <= width {
		return []string{word}
	}
	var out []string
	for len(runes) > width {
		out = append(out, string(runes[:width]))
		runes = runes[width:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// Visible returns the chunk for the given position. With no usable duration
// or a single chunk, the first chunk is shown.
func Visible(chunks [][]string, currentTime, duration float64) []string {
	if len(chunks) == 0 {
		return nil
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) || len(chunks) == 1 {
		return chunks[0]
	}
	progress := currentTime / duration
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	idx := int(math.Floor(progress * float64(len(chunks))))
	if idx > len(chunks)-1 {
		idx = len(chunks) - 1
	}
	return chunks[idx]
}

// Pad fills lines up to LinesPerChunk with empty strings so the caption box
// keeps a constant height.
func Pad(lines []string) []string {
	out := make([]string, LinesPerChunk)
	copy(out, lines)
	return out
}
