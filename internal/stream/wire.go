package stream

import (
	"encoding/json"
	"strings"
)

// wireLine is the union of every field the CLI puts on a stream-json line.
// Only the type is decoded strictly; a payload field of an unexpected JSON
// kind is ignored instead of failing the whole line.
type wireLine struct {
	Type     string          `json:"type"`
	Text     json.RawMessage `json:"text"`
	Thinking json.RawMessage `json:"thinking"`
	Content  json.RawMessage `json:"content"`
	Message  json.RawMessage `json:"message"`
	Delta    json.RawMessage `json:"delta"`
	Event    json.RawMessage `json:"event"`
	Tool     json.RawMessage `json:"tool"`
	Name     json.RawMessage `json:"name"`
	Input    json.RawMessage `json:"input"`
	Error    json.RawMessage `json:"error"`
	Code     json.RawMessage `json:"code"`
}

type wireMessage struct {
	Content json.RawMessage `json:"content"`
}

// wireBlock covers content blocks and content_block_delta deltas.
type wireBlock struct {
	Type     json.RawMessage `json:"type"`
	Text     json.RawMessage `json:"text"`
	Thinking json.RawMessage `json:"thinking"`
	Name     json.RawMessage `json:"name"`
	Input    json.RawMessage `json:"input"`
}

type wireErrorBody struct {
	Message json.RawMessage `json:"message"`
	Code    json.RawMessage `json:"code"`
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// str returns raw as a string, or "" when it is absent or not a string.
func str(raw json.RawMessage) string {
	s, _ := rawString(raw)
	return s
}

// rawCode accepts a string or a number.
func rawCode(raw json.RawMessage) string {
	if s, ok := rawString(raw); ok {
		return s
	}
	var n json.Number
	if len(raw) > 0 && json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func rawObject(raw json.RawMessage) map[string]any {
	var m map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

// rawBlocks decodes a content array one block at a time, skipping blocks
// that are not objects.
func rawBlocks(raw json.RawMessage) ([]wireBlock, bool) {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil, false
	}
	blocks := make([]wireBlock, 0, len(items))
	for _, item := range items {
		var b wireBlock
		if json.Unmarshal(item, &b) == nil {
			blocks = append(blocks, b)
		}
	}
	return blocks, true
}

type toolKind int

const (
	toolOther toolKind = iota
	toolWrite
	toolDelete
)

func classifyTool(name string) (toolKind, FileAction) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("_", "", "-", "").Replace(key)
	switch key {
	case "write", "writefile", "createfile":
		return toolWrite, FileCreate
	case "edit", "multiedit", "editfile", "notebookedit", "strreplace":
		return toolWrite, FileModify
	case "delete", "deletefile", "removefile":
		return toolDelete, FileDelete
	default:
		return toolOther, ""
	}
}

var pathKeys = []string{"file_path", "path", "filePath", "notebook_path"}

func inputPath(input map[string]any) string {
	for _, key := range pathKeys {
		if v, ok := input[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// inputContent extracts the new file content carried by a write or edit.
func inputContent(input map[string]any) (string, bool) {
	for _, key := range []string{"content", "new_string", "new_source"} {
		if v, ok := input[key].(string); ok {
			return v, true
		}
	}
	edits, ok := input["edits"].([]any)
	if !ok {
		return "", false
	}
	parts := make([]string, 0, len(edits))
	for _, e := range edits {
		edit, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := edit["new_string"].(string); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
