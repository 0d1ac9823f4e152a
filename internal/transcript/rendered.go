package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

// ToolInvocation is the transient client-side view of one tool call within a
// message, optionally carrying its result once the matching tool_result has
// been seen. A nil Result renders as pending.
type ToolInvocation struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    *string         `json:"result,omitempty"`
}

// RenderedMessage is the derived view a client displays: the same shape is
// produced live by the Consumer and by Replay over stored parts.
type RenderedMessage struct {
	ID          string           `json:"id"`
	Role        string           `json:"role"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	Invocations []ToolInvocation `json:"toolInvocations,omitempty"`
}

// Replay folds a stored part sequence back into rendered-message fields.
// Text parts concatenate in order, tool_call parts open invocations, and
// tool_result parts attach results by ID. A result with no matching call is
// dropped silently — corrupted rows must not break history loading.
func Replay(parts []Part) (string, []ToolInvocation) {
	var content strings.Builder
	var invocations []ToolInvocation

	for _, p := range parts {
		switch p.Type {
		case PartTypeText:
			content.WriteString(p.Content)
		case PartTypeToolCall:
			if p.ToolCall == nil {
				continue
			}
			invocations = append(invocations, ToolInvocation{
				ID:        p.ToolCall.ID,
				Name:      p.ToolCall.Name,
				Arguments: p.ToolCall.Arguments,
			})
		case PartTypeToolResult:
			if p.ToolResult == nil {
				continue
			}
			for i := range invocations {
				if invocations[i].ID == p.ToolResult.ID {
					result := p.ToolResult.Result
					invocations[i].Result = &result
					break
				}
			}
		}
	}

	return content.String(), invocations
}
