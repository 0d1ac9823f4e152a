package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   Event
	}{
		{
			name:   "text delta",
			line:   `data: {"type":"text-delta","delta":"Hi"}`,
			wantOK: true,
			want:   Event{Type: EventTextDelta, Delta: "Hi"},
		},
		{
			name:   "tool input",
			line:   `data: {"type":"tool-input-available","toolCallId":"c1","toolName":"clock","input":{"tz":"UTC"}}`,
			wantOK: true,
			want: Event{
				Type:       EventToolInput,
				ToolCallID: "c1",
				ToolName:   "clock",
				Input:      json.RawMessage(`{"tz":"UTC"}`),
			},
		},
		{
			name:   "done sentinel",
			line:   "data: [DONE]",
			wantOK: false,
		},
		{
			name:   "comment line",
			line:   ": keepalive",
			wantOK: false,
		},
		{
			name:   "blank line",
			line:   "",
			wantOK: false,
		},
		{
			name:   "malformed json",
			line:   `data: {"type":`,
			wantOK: false,
		},
		{
			name:   "missing type",
			line:   `data: {"delta":"x"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ParseLine(tt.line)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want.Type, ev.Type)
				assert.Equal(t, tt.want.Delta, ev.Delta)
				assert.Equal(t, tt.want.ToolCallID, ev.ToolCallID)
				assert.Equal(t, tt.want.ToolName, ev.ToolName)
				assert.JSONEq(t, orEmptyObject(tt.want.Input), orEmptyObject(ev.Input))
			}
		})
	}
}

func orEmptyObject(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func TestEncodeLineRoundTrip(t *testing.T) {
	ev := Event{Type: EventTextDelta, Delta: "Hello"}
	line := EncodeLine(ev)
	assert.Equal(t, "data: {\"type\":\"text-delta\",\"delta\":\"Hello\"}\n", line)

	parsed, ok := ParseLine(line[:len(line)-1])
	require.True(t, ok)
	assert.Equal(t, ev, parsed)
}

func TestIsDone(t *testing.T) {
	assert.True(t, IsDone("data: [DONE]"))
	assert.True(t, IsDone("data: [DONE]\n"))
	assert.False(t, IsDone(`data: {"type":"text-delta"}`))
	assert.True(t, IsDone(DoneLine()))
}

func TestOutputText(t *testing.T) {
	assert.Equal(t, "plain", OutputText(json.RawMessage(`"plain"`)))
	assert.Equal(t, `{"ok":true}`, OutputText(json.RawMessage(`{"ok":true}`)))
	assert.Equal(t, "42", OutputText(json.RawMessage(`42`)))
	assert.Equal(t, "", OutputText(nil))
}
