// Package tui is an interactive viewer for a single streaming request.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/specpilot/internal/stream"
)

var (
	viewportStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lipgloss.Color("238"))
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	thinkingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	toolStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	fileStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	loadingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	timerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	doneStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failureStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	statusBaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235")).Padding(0, 1)
)

// EventMsg carries one request event into the program.
type EventMsg struct {
	Event stream.Event
}

// ClosedMsg is sent once the event channel is closed.
type ClosedMsg struct{}

type block struct {
	kind    stream.EventType
	content string
}

// Model renders events as they arrive. The first ctrl+c or esc cancels the
// request; once it has ended, q, enter or ctrl+c quit.
type Model struct {
	events <-chan stream.Event
	cancel func()
	now    func() time.Time

	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int

	blocks     []block
	files      map[string]stream.FileAction
	started    time.Time
	last       stream.Event
	finished   bool
	cancelling bool
}

func New(events <-chan stream.Event, cancel func()) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle
	if cancel == nil {
		cancel = func() {}
	}
	return &Model{
		events:   events,
		cancel:   cancel,
		now:      time.Now,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		files:    make(map[string]stream.FileAction),
		started:  time.Now(),
	}
}

// Last returns the most recent event, which is the terminal event once the
// request has ended.
func (m *Model) Last() stream.Event {
	return m.last
}

func (m *Model) Finished() bool {
	return m.finished
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spinner.Tick)
}

func waitForEvent(events <-chan stream.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return ClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)
	case ClosedMsg:
		m.finished = true
		return m, nil
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.finished {
			return m, tea.Quit
		}
		if !m.cancelling {
			m.cancelling = true
			m.cancel()
		}
		return m, nil
	case "q", "enter":
		if m.finished {
			return m, tea.Quit
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) SetSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	m.width, m.height = w, h
	m.viewport.Width = w
	// status bar and footer take two lines, the border one more
	m.viewport.Height = max(1, h-3)
	m.render()
}

func (m *Model) apply(ev stream.Event) {
	m.last = ev
	switch ev.Type {
	case stream.EventStart:
		if ev.Timestamp > 0 {
			m.started = time.UnixMilli(ev.Timestamp)
		}
	case stream.EventText:
		// consecutive text events form one block
		if n := len(m.blocks); n > 0 && m.blocks[n-1].kind == stream.EventText {
			m.blocks[n-1].content += ev.Content
		} else {
			m.blocks = append(m.blocks, block{kind: stream.EventText, content: ev.Content})
		}
	case stream.EventThinking:
		m.blocks = append(m.blocks, block{kind: ev.Type, content: ev.Content})
	case stream.EventToolUse:
		m.blocks = append(m.blocks, block{kind: ev.Type, content: ev.Tool})
	case stream.EventFileStart:
		m.files[ev.Path] = ev.Action
		m.blocks = append(m.blocks, block{kind: ev.Type, content: fmt.Sprintf("%s %s", ev.Action, ev.Path)})
	case stream.EventComplete, stream.EventError:
		m.finished = true
	}
	m.render()
}

func (m *Model) render() {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width)

	parts := make([]string, 0, len(m.blocks))
	for _, b := range m.blocks {
		switch b.kind {
		case stream.EventText:
			parts = append(parts, assistantStyle.Render(wrap.Render(strings.TrimSpace(b.content))))
		case stream.EventThinking:
			parts = append(parts, thinkingStyle.Render(wrap.Render(strings.TrimSpace(b.content))))
		case stream.EventToolUse:
			parts = append(parts, toolStyle.Render("tool "+b.content))
		case stream.EventFileStart:
			parts = append(parts, fileStyle.Render(b.content))
		}
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		viewportStyle.Width(m.viewport.Width).Render(m.viewport.View()),
		m.statusLine(),
		m.footer(),
	)
}

func (m *Model) statusLine() string {
	elapsed := m.now().Sub(m.started).Round(time.Second)
	switch {
	case m.finished && m.last.Type == stream.EventError:
		msg := "error: " + m.last.Message
		if m.last.Code != "" {
			msg += " [" + string(m.last.Code) + "]"
		}
		return failureStyle.Render(msg)
	case m.finished:
		return doneStyle.Render(fmt.Sprintf("done in %s", formatElapsed(elapsed))) +
			statusBaseStyle.Render(fmt.Sprintf("%d files", len(m.files)))
	case m.cancelling:
		return loadingStyle.Render(m.spinner.View()+" cancelling...") + " " + timerStyle.Render(formatElapsed(elapsed))
	default:
		return loadingStyle.Render(m.spinner.View()+" claude is working...") + " " + timerStyle.Render(formatElapsed(elapsed))
	}
}

func (m *Model) footer() string {
	if m.finished {
		return hintStyle.Render("q to quit")
	}
	return hintStyle.Render("ctrl+c to cancel, arrows to scroll")
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}

// Run shows the request until the user quits and returns its last event.
func Run(events <-chan stream.Event, cancel func(), opts ...tea.ProgramOption) (stream.Event, error) {
	m := New(events, cancel)
	final, err := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...).Run()
	if err != nil {
		m.cancel()
		return stream.Event{}, err
	}
	fm := final.(*Model)
	if !fm.finished {
		// the program ended early; wait for the request to wind down
		fm.cancel()
		for ev := range events {
			fm.last = ev
		}
	}
	return fm.last, nil
}
