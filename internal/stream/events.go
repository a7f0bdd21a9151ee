package stream

import "time"

type EventType string

const (
	EventStart       EventType = "start"
	EventText        EventType = "text"
	EventThinking    EventType = "thinking"
	EventToolUse     EventType = "tool_use"
	EventFileStart   EventType = "file_start"
	EventFileContent EventType = "file_content"
	EventFileEnd     EventType = "file_end"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

type FileAction string

const (
	FileCreate FileAction = "create"
	FileModify FileAction = "modify"
	FileDelete FileAction = "delete"
)

// ErrorCode classifies a failure for the UI layer. An empty code is valid.
type ErrorCode string

const (
	CodeNotAvailable ErrorCode = "NOT_AVAILABLE"
	CodeBusy         ErrorCode = "BUSY"
	CodeCancelled    ErrorCode = "CANCELLED"
	CodeCLIError     ErrorCode = "CLI_ERROR"
	CodeUnknown      ErrorCode = "UNKNOWN"
)

// Event is one domain event of a request. Only the fields belonging to Type
// are populated.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Path      string         `json:"path,omitempty"`
	Action    FileAction     `json:"action,omitempty"`
	Message   string         `json:"message,omitempty"`
	Code      ErrorCode      `json:"code,omitempty"`
}

// IsTerminal reports whether e ends a request.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func Start(at time.Time) Event {
	return Event{Type: EventStart, Timestamp: at.UnixMilli()}
}

func Complete(at time.Time) Event {
	return Event{Type: EventComplete, Timestamp: at.UnixMilli()}
}

func Error(message string, code ErrorCode) Event {
	return Event{Type: EventError, Message: message, Code: code}
}

func Text(content string) Event {
	return Event{Type: EventText, Content: content}
}

func Thinking(content string) Event {
	return Event{Type: EventThinking, Content: content}
}

func ToolUse(tool string, input map[string]any) Event {
	return Event{Type: EventToolUse, Tool: tool, Input: input}
}

func FileStart(path string, action FileAction) Event {
	return Event{Type: EventFileStart, Path: path, Action: action}
}

func FileContent(path, content string) Event {
	return Event{Type: EventFileContent, Path: path, Content: content}
}

func FileEnd(path string) Event {
	return Event{Type: EventFileEnd, Path: path}
}
