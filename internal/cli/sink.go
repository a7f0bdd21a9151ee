package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/specpilot/internal/stream"
)

// eventSink renders request events as they arrive.
type eventSink interface {
	Handle(ev stream.Event) error
}

type jsonSink struct {
	enc *json.Encoder
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(w)}
}

func (s *jsonSink) Handle(ev stream.Event) error {
	return s.enc.Encode(ev)
}

type sinkStyles struct {
	dim      lipgloss.Style
	thinking lipgloss.Style
	tool     lipgloss.Style
	file     lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
}

// terminalSink prints assistant text as it streams, wrapped to width, and one
// styled line per structural event. Colour is used only when w is a terminal.
type terminalSink struct {
	w      io.Writer
	width  int
	styles sinkStyles
	text   *textWrapper
}

func newTerminalSink(w io.Writer, width int) *terminalSink {
	r := lipgloss.NewRenderer(w)
	return &terminalSink{
		w:     w,
		width: width,
		text:  newTextWrapper(width),
		styles: sinkStyles{
			dim:      r.NewStyle().Foreground(lipgloss.Color("240")),
			thinking: r.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
			tool:     r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
			file:     r.NewStyle().Foreground(lipgloss.Color("212")),
			success:  r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
			failure:  r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
	}
}

func (s *terminalSink) Handle(ev stream.Event) error {
	st := s.styles
	switch ev.Type {
	case stream.EventText:
		if ev.Content == "" {
			return nil
		}
		_, err := io.WriteString(s.w, s.text.Write(ev.Content))
		return err
	case stream.EventStart:
		return s.line(st.dim.Render("specpilot: request started"))
	case stream.EventThinking:
		return s.line(st.thinking.Render(hangingIndent("thinking: ", ev.Content, s.width)))
	case stream.EventToolUse:
		return s.line(st.tool.Render("tool "+ev.Tool) + st.dim.Render(formatInput(ev.Input)))
	case stream.EventFileStart:
		return s.line(st.file.Render(fmt.Sprintf("%s %s", ev.Action, ev.Path)))
	case stream.EventFileContent:
		return s.line(st.dim.Render(fmt.Sprintf("  %d bytes for %s", len(ev.Content), ev.Path)))
	case stream.EventFileEnd:
		return s.line(st.dim.Render("  closed " + ev.Path))
	case stream.EventComplete:
		return s.line(st.success.Render("done"))
	case stream.EventError:
		msg := "error: " + ev.Message
		if ev.Code != "" {
			msg += " [" + string(ev.Code) + "]"
		}
		return s.line(st.failure.Render(hangingIndent("", msg, s.width)))
	default:
		return nil
	}
}

// line writes text on a line of its own, after any streamed text still held
// by the wrapper.
func (s *terminalSink) line(text string) error {
	rest, midLine := s.text.Flush()
	if midLine {
		rest += "\n"
	}
	if _, err := io.WriteString(s.w, rest); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.w, text)
	return err
}

// formatInput renders tool input keys in a stable order, with long values cut.
func formatInput(input map[string]any) string {
	if len(input) == 0 {
		return ""
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		raw, err := json.Marshal(input[k])
		if err != nil {
			continue
		}
		v := string(raw)
		if len(v) > 60 {
			cut := 57
			for cut > 0 && !utf8.RuneStart(v[cut]) {
				cut--
			}
			v = v[:cut] + "..."
		}
		parts = append(parts, k+"="+v)
	}
	return " " + strings.Join(parts, " ")
}
