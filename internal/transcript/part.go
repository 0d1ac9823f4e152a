package transcript

import (
	"encoding/json"
	"strings"
)

// PartType discriminates the variants of a transcript part.
type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeToolCall   PartType = "tool_call"
	PartTypeToolResult PartType = "tool_result"
)

// ToolCallData carries an invocation request captured from the stream.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResultData carries the outcome of a prior tool call, matched by ID.
type ToolResultData struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

// Part is one element of an assistant turn's transcript: a contiguous text
// span, a tool call, or a tool result. Exactly one of Content, ToolCall or
// ToolResult is populated, selected by Type. The JSON shape matches the
// message_parts rows stored in the messages table.
type Part struct {
	Type       PartType        `json:"type"`
	Content    string          `json:"content,omitempty"`
	ToolCall   *ToolCallData   `json:"toolCall,omitempty"`
	ToolResult *ToolResultData `json:"toolResult,omitempty"`
}

// TextPart builds a text part. The caller is responsible for trimming.
func TextPart(content string) Part {
	return Part{Type: PartTypeText, Content: content}
}

// ToolCallPart builds a tool_call part.
func ToolCallPart(id, name string, arguments json.RawMessage) Part {
	return Part{Type: PartTypeToolCall, ToolCall: &ToolCallData{ID: id, Name: name, Arguments: arguments}}
}

// ToolResultPart builds a tool_result part.
func ToolResultPart(id, result string) Part {
	return Part{Type: PartTypeToolResult, ToolResult: &ToolResultData{ID: id, Result: result}}
}

// PlainText flattens a part sequence into the derived plain-text content:
// the concatenation of every text part, in stored order. Tool parts do not
// contribute.
func PlainText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Content)
		}
	}
	return b.String()
}
