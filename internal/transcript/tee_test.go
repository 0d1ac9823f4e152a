package transcript

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenSink fails every write after the first n bytes worth of calls.
type brokenSink struct {
	writesBeforeFailure int
	writes              int
	received            strings.Builder
}

func (b *brokenSink) Write(p []byte) (int, error) {
	b.writes++
	if b.writes > b.writesBeforeFailure {
		return 0, errors.New("connection reset")
	}
	b.received.Write(p)
	return len(p), nil
}

// errReader yields its content and then a non-EOF error.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		return n, e.err
	}
	return n, err
}

func streamOf(lines ...string) string {
	return strings.Join(lines, "")
}

func TestTeeForwardsBytesExactly(t *testing.T) {
	input := streamOf(
		EncodeLine(Event{Type: EventTextDelta, Delta: "Hello"}),
		": keepalive\n",
		"data: {not json}\n",
		EncodeLine(Event{Type: EventTextDelta, Delta: " world"}),
		DoneLine(),
	)

	acc := NewAccumulator()
	tee := NewTee(acc)
	var sink strings.Builder

	err := tee.Relay(strings.NewReader(input), &sink)
	require.NoError(t, err)

	// Every byte reaches the sink unchanged, malformed lines included.
	assert.Equal(t, input, sink.String())
	assert.False(t, tee.SinkBroken())

	parts := acc.Finalize("")
	require.Len(t, parts, 1)
	assert.Equal(t, "Hello world", parts[0].Content)
}

func TestTeeStopsAfterDone(t *testing.T) {
	input := streamOf(
		EncodeLine(Event{Type: EventTextDelta, Delta: "before"}),
		DoneLine(),
		EncodeLine(Event{Type: EventTextDelta, Delta: "after"}),
	)

	acc := NewAccumulator()
	var sink strings.Builder
	err := NewTee(acc).Relay(strings.NewReader(input), &sink)
	require.NoError(t, err)

	// Nothing past the sentinel is forwarded or accumulated.
	assert.True(t, strings.HasSuffix(sink.String(), DoneLine()))
	assert.NotContains(t, sink.String(), "after")

	parts := acc.Finalize("")
	require.Len(t, parts, 1)
	assert.Equal(t, "before", parts[0].Content)
}

func TestTeeMidStreamReadError(t *testing.T) {
	streamErr := errors.New("upstream hiccup")
	input := streamOf(
		EncodeLine(Event{Type: EventTextDelta, Delta: "partial"}),
	)

	acc := NewAccumulator()
	var sink strings.Builder
	err := NewTee(acc).Relay(&errReader{r: strings.NewReader(input), err: streamErr}, &sink)
	require.ErrorIs(t, err, streamErr)

	// What arrived before the failure is still forwarded and accumulated.
	assert.Equal(t, input, sink.String())
	parts := acc.Finalize("")
	require.Len(t, parts, 1)
	assert.Equal(t, "partial", parts[0].Content)
}

func TestTeeBrokenSinkKeepsDraining(t *testing.T) {
	input := streamOf(
		EncodeLine(Event{Type: EventTextDelta, Delta: "first"}),
		EncodeLine(Event{Type: EventToolInput, ToolCallID: "c1", ToolName: "clock", Input: json.RawMessage(`{}`)}),
		EncodeLine(Event{Type: EventToolOutput, ToolCallID: "c1", Output: json.RawMessage(`"noon"`)}),
		DoneLine(),
	)

	acc := NewAccumulator()
	tee := NewTee(acc)
	sink := &brokenSink{writesBeforeFailure: 1}

	err := tee.Relay(strings.NewReader(input), sink)
	require.NoError(t, err)
	assert.True(t, tee.SinkBroken())

	// The full transcript is still built from the drained stream.
	parts := acc.Finalize("")
	require.Len(t, parts, 3)
	assert.Equal(t, "first", parts[0].Content)
	assert.Equal(t, PartTypeToolCall, parts[1].Type)
	assert.Equal(t, PartTypeToolResult, parts[2].Type)
}

func TestTeeUnterminatedFinalLine(t *testing.T) {
	// Upstream ends without a trailing newline; the partial line still counts.
	input := `data: {"type":"text-delta","delta":"tail"}`

	acc := NewAccumulator()
	var sink strings.Builder
	err := NewTee(acc).Relay(strings.NewReader(input), &sink)
	require.NoError(t, err)

	assert.Equal(t, input, sink.String())
	parts := acc.Finalize("")
	require.Len(t, parts, 1)
	assert.Equal(t, "tail", parts[0].Content)
}
