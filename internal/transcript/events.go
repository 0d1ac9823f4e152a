package transcript

import (
	"encoding/json"
	"strings"
)

// Wire protocol constants. The outbound stream is newline-delimited; data
// lines carry a JSON event payload, and a literal [DONE] payload terminates
// the stream.
const (
	DataPrefix = "data: "
	DoneSignal = "[DONE]"
)

// Event types emitted by the upstream generation adapter.
const (
	EventTextDelta  = "text-delta"
	EventToolInput  = "tool-input-available"
	EventToolOutput = "tool-output-available"
)

// Event is one decoded upstream stream event. Fields are populated per Type;
// unknown types are carried through with only Type set so callers can skip
// them without error.
type Event struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// ParseLine attempts to decode one protocol line into an Event.
// It returns ok=false for comment/control lines, the [DONE] sentinel, blank
// lines and malformed JSON payloads — all of which are forwarded verbatim by
// the transcoder but contribute nothing to the transcript.
func ParseLine(line string) (Event, bool) {
	if !strings.HasPrefix(line, DataPrefix) {
		return Event{}, false
	}
	payload := line[len(DataPrefix):]
	if payload == DoneSignal {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, false
	}
	if ev.Type == "" {
		return Event{}, false
	}
	return ev, true
}

// IsDone reports whether the line is the stream termination sentinel.
func IsDone(line string) bool {
	return strings.TrimSuffix(line, "\n") == DataPrefix+DoneSignal
}

// EncodeLine renders an event as a protocol line, newline included. Used by
// the upstream adapter's response translation and by tests that synthesize
// streams.
func EncodeLine(ev Event) string {
	payload, err := json.Marshal(ev)
	if err != nil {
		// Event fields are all marshalable types; this cannot fail in practice.
		return "\n"
	}
	return DataPrefix + string(payload) + "\n"
}

// DoneLine is the termination line, newline included.
func DoneLine() string {
	return DataPrefix + DoneSignal + "\n"
}

// OutputText renders a tool output payload as the string stored in a
// tool_result part. JSON strings collapse to their value; any other JSON
// value is kept as its compact source text.
func OutputText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
