// Package stream turns the assistant CLI's newline-delimited JSON output into
// ordered domain events.
package stream

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// FileOperation is the file mutation currently being streamed.
type FileOperation struct {
	Path    string
	Action  FileAction
	Content string
}

// Parser is stateful and not safe for concurrent use. Chunk boundaries do not
// need to line up with lines.
type Parser struct {
	buf    strings.Builder
	open   *FileOperation
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse buffers chunk and returns the events of every line it completes.
func (p *Parser) Parse(chunk string) []Event {
	if chunk == "" {
		return nil
	}
	p.buf.WriteString(chunk)
	data := p.buf.String()
	last := strings.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}
	complete, rest := data[:last], data[last+1:]
	p.buf.Reset()
	p.buf.WriteString(rest)

	var events []Event
	for _, line := range strings.Split(complete, "\n") {
		events = append(events, p.parseLine(line)...)
	}
	return events
}

// Flush parses whatever partial line is still buffered and closes a file
// window left open by a tool sequence that never got its result.
func (p *Parser) Flush() []Event {
	rest := p.buf.String()
	p.buf.Reset()
	events := p.parseLine(rest)
	return append(events, p.closeWindow()...)
}

func (p *Parser) Reset() {
	p.buf.Reset()
	p.open = nil
}

// OpenFile returns a copy of the open file operation, if any.
func (p *Parser) OpenFile() (FileOperation, bool) {
	if p.open == nil {
		return FileOperation{}, false
	}
	return *p.open, true
}

func (p *Parser) parseLine(line string) []Event {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	var msg wireLine
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		p.logger.Warn("skipping malformed stream line", zap.Error(err), zap.String("line", truncate(line, 200)))
		return nil
	}
	return p.dispatch(msg)
}

func (p *Parser) dispatch(msg wireLine) []Event {
	switch msg.Type {
	case "assistant":
		return p.assistant(msg)
	case "user":
		return p.user(msg)
	case "content_block_delta":
		return deltaEvents(msg.Delta)
	case "stream_event":
		var inner wireLine
		if len(msg.Event) == 0 || json.Unmarshal(msg.Event, &inner) != nil {
			return nil
		}
		if inner.Type == "stream_event" {
			return nil
		}
		return p.dispatch(inner)
	case "text", "assistant_text", "text_delta", "content":
		text := str(msg.Text)
		if text == "" {
			text, _ = rawString(msg.Content)
		}
		if text == "" {
			return nil
		}
		return []Event{Text(text)}
	case "thinking":
		thought := str(msg.Thinking)
		if thought == "" {
			thought = str(msg.Text)
		}
		if thought == "" {
			thought, _ = rawString(msg.Content)
		}
		if thought == "" {
			return nil
		}
		return []Event{Thinking(thought)}
	case "tool_use":
		name := str(msg.Tool)
		if name == "" {
			name = str(msg.Name)
		}
		return p.toolUse(name, rawObject(msg.Input))
	case "tool_result":
		return p.closeWindow()
	case "error":
		return []Event{errorEvent(msg)}
	default:
		// system, result, message_start/stop, content_block_start/stop, ping:
		// their content already arrived incrementally.
		return nil
	}
}

func (p *Parser) assistant(msg wireLine) []Event {
	content := msg.Content
	if len(msg.Message) > 0 {
		var m wireMessage
		if err := json.Unmarshal(msg.Message, &m); err != nil {
			if s, ok := rawString(msg.Message); ok && s != "" {
				return []Event{Text(s)}
			}
			return nil
		}
		content = m.Content
	}
	if s, ok := rawString(content); ok {
		if s == "" {
			return nil
		}
		return []Event{Text(s)}
	}

	blocks, ok := rawBlocks(content)
	if !ok {
		return nil
	}
	var events []Event
	for _, b := range blocks {
		switch str(b.Type) {
		case "text":
			if text := str(b.Text); text != "" {
				events = append(events, Text(text))
			}
		case "thinking":
			if thought := str(b.Thinking); thought != "" {
				events = append(events, Thinking(thought))
			}
		case "tool_use":
			events = append(events, p.toolUse(str(b.Name), rawObject(b.Input))...)
		case "tool_result":
			events = append(events, p.closeWindow()...)
		}
	}
	return events
}

// user lines echo tool results back to the model.
func (p *Parser) user(msg wireLine) []Event {
	var m wireMessage
	if len(msg.Message) == 0 || json.Unmarshal(msg.Message, &m) != nil {
		return nil
	}
	blocks, ok := rawBlocks(m.Content)
	if !ok {
		return nil
	}
	var events []Event
	for _, b := range blocks {
		if str(b.Type) == "tool_result" {
			events = append(events, p.closeWindow()...)
		}
	}
	return events
}

func (p *Parser) toolUse(name string, input map[string]any) []Event {
	kind, action := classifyTool(name)
	path := inputPath(input)
	if path == "" {
		kind = toolOther
	}
	switch kind {
	case toolDelete:
		return []Event{FileStart(path, FileDelete)}
	case toolWrite:
		events := p.closeWindow()
		p.open = &FileOperation{Path: path, Action: action}
		events = append(events, FileStart(path, action))
		if content, ok := inputContent(input); ok {
			p.open.Content += content
			events = append(events, FileContent(path, content))
		}
		return events
	default:
		return []Event{ToolUse(name, input)}
	}
}

func (p *Parser) closeWindow() []Event {
	if p.open == nil {
		return nil
	}
	path := p.open.Path
	p.open = nil
	return []Event{FileEnd(path)}
}

func deltaEvents(raw json.RawMessage) []Event {
	var d wireBlock
	if len(raw) == 0 || json.Unmarshal(raw, &d) != nil {
		return nil
	}
	switch str(d.Type) {
	case "thinking_delta":
		thought := str(d.Thinking)
		if thought == "" {
			return nil
		}
		return []Event{Thinking(thought)}
	case "text_delta", "":
		text := str(d.Text)
		if text == "" {
			return nil
		}
		return []Event{Text(text)}
	default:
		return nil
	}
}

func errorEvent(msg wireLine) Event {
	message, code := "", rawCode(msg.Code)
	if s, ok := rawString(msg.Error); ok {
		message = s
	} else if len(msg.Error) > 0 {
		var body wireErrorBody
		if json.Unmarshal(msg.Error, &body) == nil {
			message = str(body.Message)
			if code == "" {
				code = rawCode(body.Code)
			}
		}
	}
	if message == "" {
		message, _ = rawString(msg.Message)
	}
	if message == "" {
		message = "Unknown error"
	}
	return Error(message, ErrorCode(code))
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
