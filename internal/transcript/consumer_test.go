package transcript

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerSplitAcrossFeeds(t *testing.T) {
	c := NewConsumer()
	line := EncodeLine(Event{Type: EventTextDelta, Delta: "Hello world"})

	// Feed the line a few bytes at a time.
	for i := 0; i < len(line); i += 5 {
		end := i + 5
		if end > len(line) {
			end = len(line)
		}
		c.Feed([]byte(line[i:end]))
	}

	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "Hello world", current.Content)
}

func TestConsumerMergesInvocationByID(t *testing.T) {
	c := NewConsumer()
	c.Feed([]byte(EncodeLine(Event{Type: EventToolInput, ToolCallID: "c1", ToolName: "clock", Input: json.RawMessage(`{"tz":"UTC"}`)})))

	current, ok := c.Current()
	require.True(t, ok)
	require.Len(t, current.Invocations, 1)
	assert.Nil(t, current.Invocations[0].Result)

	c.Feed([]byte(EncodeLine(Event{Type: EventToolOutput, ToolCallID: "c1", Output: json.RawMessage(`"noon"`)})))

	current, ok = c.Current()
	require.True(t, ok)
	require.Len(t, current.Invocations, 1)
	require.NotNil(t, current.Invocations[0].Result)
	assert.Equal(t, "noon", *current.Invocations[0].Result)
}

func TestConsumerUnmatchedToolOutputIgnored(t *testing.T) {
	c := NewConsumer()
	c.Feed([]byte(EncodeLine(Event{Type: EventToolOutput, ToolCallID: "ghost", Output: json.RawMessage(`"x"`)})))

	_, ok := c.Current()
	assert.False(t, ok)
	assert.Empty(t, c.Messages())
}

func TestConsumerSnapshotsAreImmutable(t *testing.T) {
	c := NewConsumer()
	c.Feed([]byte(EncodeLine(Event{Type: EventToolInput, ToolCallID: "c1", ToolName: "clock"})))

	before, ok := c.Current()
	require.True(t, ok)
	require.Len(t, before.Invocations, 1)
	require.Nil(t, before.Invocations[0].Result)

	c.Feed([]byte(EncodeLine(Event{Type: EventToolOutput, ToolCallID: "c1", Output: json.RawMessage(`"noon"`)})))

	// The earlier snapshot does not see the later result.
	assert.Nil(t, before.Invocations[0].Result)

	after, ok := c.Current()
	require.True(t, ok)
	require.NotNil(t, after.Invocations[0].Result)
}

func TestConsumerAddMessageClosesOpenAssistant(t *testing.T) {
	c := NewConsumer()
	c.Feed([]byte(EncodeLine(Event{Type: EventTextDelta, Delta: "first reply"})))
	c.EndMessage()

	c.AddMessage("user", "second question")
	c.Feed([]byte(EncodeLine(Event{Type: EventTextDelta, Delta: "second reply"})))

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Equal(t, "first reply", msgs[0].Content)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "second reply", msgs[2].Content)
	assert.NotEqual(t, msgs[0].ID, msgs[2].ID)
}

func TestConsumerFlushesCarryOnEnd(t *testing.T) {
	c := NewConsumer()
	// A final line without trailing newline must still apply at EndMessage.
	line := EncodeLine(Event{Type: EventTextDelta, Delta: "tail"})
	c.Feed([]byte(strings.TrimSuffix(line, "\n")))

	_, ok := c.Current()
	assert.False(t, ok)

	c.EndMessage()
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "tail", msgs[0].Content)
}

func TestConsumerIgnoresNonProtocolLines(t *testing.T) {
	c := NewConsumer()
	c.Feed([]byte(": keepalive\n"))
	c.Feed([]byte("data: {broken\n"))
	c.Feed([]byte(DoneLine()))

	assert.Empty(t, c.Messages())
}

func TestReplayFoldsParts(t *testing.T) {
	parts := []Part{
		TextPart("Hello"),
		ToolCallPart("c1", "clock", json.RawMessage(`{}`)),
		ToolResultPart("c1", "noon"),
		TextPart("there"),
	}

	content, invocations := Replay(parts)
	assert.Equal(t, "Hellothere", content)
	require.Len(t, invocations, 1)
	assert.Equal(t, "clock", invocations[0].Name)
	require.NotNil(t, invocations[0].Result)
	assert.Equal(t, "noon", *invocations[0].Result)
}

func TestReplayDropsUnmatchedResult(t *testing.T) {
	parts := []Part{
		TextPart("text"),
		ToolResultPart("ghost", "orphan"),
	}

	content, invocations := Replay(parts)
	assert.Equal(t, "text", content)
	assert.Empty(t, invocations)
}

// Live rendering and replay of the persisted transcript must agree on the
// part-derived content whenever text deltas carry no boundary whitespace.
func TestLiveAndReplayAgree(t *testing.T) {
	events := []Event{
		{Type: EventTextDelta, Delta: "Checking the time."},
		{Type: EventToolInput, ToolCallID: "c1", ToolName: "get_current_time", Input: json.RawMessage(`{"timezone":"UTC"}`)},
		{Type: EventToolOutput, ToolCallID: "c1", Output: json.RawMessage(`"Tuesday 10:00"`)},
		{Type: EventTextDelta, Delta: "It is Tuesday at ten."},
	}

	var stream strings.Builder
	for _, ev := range events {
		stream.WriteString(EncodeLine(ev))
	}
	stream.WriteString(DoneLine())

	// Server side: tee into an accumulator, persist the parts.
	acc := NewAccumulator()
	var forwarded strings.Builder
	require.NoError(t, NewTee(acc).Relay(strings.NewReader(stream.String()), &forwarded))
	parts := acc.Finalize("")

	// Client side: consume the forwarded bytes live.
	consumer := NewConsumer()
	consumer.Feed([]byte(forwarded.String()))
	consumer.EndMessage()

	msgs := consumer.Messages()
	require.Len(t, msgs, 1)

	replayContent, replayInvocations := Replay(parts)
	assert.Equal(t, msgs[0].Content, replayContent)

	require.Len(t, replayInvocations, len(msgs[0].Invocations))
	for i, inv := range msgs[0].Invocations {
		assert.Equal(t, inv.ID, replayInvocations[i].ID)
		assert.Equal(t, inv.Name, replayInvocations[i].Name)
		require.NotNil(t, inv.Result)
		require.NotNil(t, replayInvocations[i].Result)
		assert.Equal(t, *inv.Result, *replayInvocations[i].Result)
	}
}
