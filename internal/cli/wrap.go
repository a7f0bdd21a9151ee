package cli

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
)

// textWrapper soft-wraps assistant text that arrives in fragments. The last
// word of a fragment is held back until the whitespace after it arrives, so a
// word split across text events is still placed as one. Widths are measured
// in terminal cells with ANSI sequences ignored.
type textWrapper struct {
	width int
	col   int
	gap   string
	word  strings.Builder
}

func newTextWrapper(width int) *textWrapper {
	return &textWrapper{width: width}
}

// Write consumes a fragment and returns what can be printed now.
func (w *textWrapper) Write(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if w.width <= 0 {
		if i := strings.LastIndexByte(text, '\n'); i >= 0 {
			w.col = lipgloss.Width(text[i+1:])
		} else {
			w.col += lipgloss.Width(text)
		}
		return text
	}

	var out strings.Builder
	for _, r := range text {
		switch {
		case r == '\n':
			w.placeWord(&out)
			out.WriteByte('\n')
			w.col, w.gap = 0, ""
		case unicode.IsSpace(r):
			w.placeWord(&out)
			if w.col > 0 {
				w.gap += string(r)
			}
		default:
			w.word.WriteRune(r)
		}
	}
	return out.String()
}

// Flush returns the held-back word and reports whether the cursor is left
// mid-line. The wrapper then starts a fresh line.
func (w *textWrapper) Flush() (string, bool) {
	var out strings.Builder
	w.placeWord(&out)
	midLine := w.col > 0
	w.col, w.gap = 0, ""
	return out.String(), midLine
}

func (w *textWrapper) placeWord(out *strings.Builder) {
	if w.word.Len() == 0 {
		return
	}
	word := w.word.String()
	w.word.Reset()
	gap := w.gap
	w.gap = ""

	size := lipgloss.Width(word)
	if w.col > 0 && w.col+lipgloss.Width(gap)+size > w.width {
		out.WriteByte('\n')
		w.col, gap = 0, ""
	}
	out.WriteString(gap)
	w.col += lipgloss.Width(gap)
	if size <= w.width-w.col {
		out.WriteString(word)
		w.col += size
		return
	}
	// longer than a line: break it
	for _, r := range word {
		rw := lipgloss.Width(string(r))
		if w.col > 0 && w.col+rw > w.width {
			out.WriteByte('\n')
			w.col = 0
		}
		out.WriteRune(r)
		w.col += rw
	}
}

// wrapToWidth wraps a complete text to width cells.
func wrapToWidth(text string, width int) string {
	w := newTextWrapper(width)
	out := w.Write(text)
	rest, _ := w.Flush()
	return out + rest
}

// hangingIndent wraps content after prefix and indents continuation lines to
// the prefix's visible width, so a styled prefix lines up too.
func hangingIndent(prefix, content string, width int) string {
	prefixWidth := lipgloss.Width(prefix)
	if width <= 0 || prefixWidth >= width {
		return prefix + content
	}
	lines := strings.Split(wrapToWidth(content, width-prefixWidth), "\n")
	indent := strings.Repeat(" ", prefixWidth)
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
		} else {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}
