package upstream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstream-backend/internal/tools"
	"chatstream-backend/internal/transcript"
)

func sseChunk(w io.Writer, body string) {
	fmt.Fprintf(w, "data: %s\n\n", body)
}

func readAllLines(t *testing.T, s *Stream) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func parseEvents(t *testing.T, lines []string) []transcript.Event {
	t.Helper()
	var events []transcript.Event
	for _, line := range lines {
		if ev, ok := transcript.ParseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

func TestStreamTextOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		sseChunk(w, `{"choices":[{"delta":{"content":"Hello"}}]}`)
		sseChunk(w, `{"choices":[{"delta":{"content":" world"}}]}`)
		sseChunk(w, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model")
	stream, err := client.Stream(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	lines := readAllLines(t, stream)
	require.NotEmpty(t, lines)
	assert.True(t, transcript.IsDone(lines[len(lines)-1]))

	events := parseEvents(t, lines)
	require.Len(t, events, 2)
	assert.Equal(t, "Hello", events[0].Delta)
	assert.Equal(t, " world", events[1].Delta)

	assert.Equal(t, "Hello world", stream.FinalText())
}

func TestStreamExecutesToolCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch calls.Add(1) {
		case 1:
			// Tool call arguments arrive fragmented across chunks.
			sseChunk(w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"lookup","arguments":"{\"qu"}}]}}]}`)
			sseChunk(w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ery\":\"go\"}"}}]}}]}`)
			sseChunk(w, `{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`)
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			// Second step sees the tool result in the conversation.
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, "tool", last.Role)
			assert.Equal(t, "call_1", last.ToolCallID)
			assert.Equal(t, "found it", last.Content)

			sseChunk(w, `{"choices":[{"delta":{"content":"Answer."}}]}`)
			sseChunk(w, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
	}))
	defer server.Close()

	registry := tools.NewRegistry()
	registry.Register(tools.Capability{
		Name:        "lookup",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Execute: func(ctx context.Context, input json.RawMessage) (string, error) {
			assert.JSONEq(t, `{"query":"go"}`, string(input))
			return "found it", nil
		},
	})

	client := NewClient(server.URL, "test-key", "test-model")
	stream, err := client.Stream(context.Background(), Request{
		Messages:     []ChatMessage{{Role: "user", Content: "look up go"}},
		Capabilities: registry,
	})
	require.NoError(t, err)

	lines := readAllLines(t, stream)
	events := parseEvents(t, lines)
	require.Len(t, events, 3)

	assert.Equal(t, transcript.EventToolInput, events[0].Type)
	assert.Equal(t, "call_1", events[0].ToolCallID)
	assert.Equal(t, "lookup", events[0].ToolName)
	assert.JSONEq(t, `{"query":"go"}`, string(events[0].Input))

	assert.Equal(t, transcript.EventToolOutput, events[1].Type)
	assert.Equal(t, "call_1", events[1].ToolCallID)
	assert.Equal(t, "found it", transcript.OutputText(events[1].Output))

	assert.Equal(t, transcript.EventTextDelta, events[2].Type)
	assert.Equal(t, "Answer.", events[2].Delta)

	assert.True(t, transcript.IsDone(lines[len(lines)-1]))
	assert.Equal(t, int32(2), calls.Load())
}

func TestStreamToolFailureReportedAsOutput(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			sseChunk(w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"flaky","arguments":"{}"}}]}}]}`)
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		sseChunk(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	registry := tools.NewRegistry()
	registry.Register(tools.Capability{
		Name: "flaky",
		Execute: func(ctx context.Context, input json.RawMessage) (string, error) {
			return "", fmt.Errorf("backend exploded")
		},
	})

	client := NewClient(server.URL, "k", "m")
	stream, err := client.Stream(context.Background(), Request{
		Messages:     []ChatMessage{{Role: "user", Content: "go"}},
		Capabilities: registry,
	})
	require.NoError(t, err)

	events := parseEvents(t, readAllLines(t, stream))
	require.Len(t, events, 3)
	assert.Contains(t, transcript.OutputText(events[1].Output), "backend exploded")
	assert.Equal(t, "ok", events[2].Delta)
}

func TestStreamStepLimitStopsRequesting(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Every step asks for another tool call.
		sseChunk(w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"again","arguments":"{}"}}]}}]}`)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	registry := tools.NewRegistry()
	registry.Register(tools.Capability{
		Name: "again",
		Execute: func(ctx context.Context, input json.RawMessage) (string, error) {
			return "more", nil
		},
	})

	client := NewClient(server.URL, "k", "m")
	stream, err := client.Stream(context.Background(), Request{
		Messages:     []ChatMessage{{Role: "user", Content: "loop"}},
		Capabilities: registry,
	})
	require.NoError(t, err)

	lines := readAllLines(t, stream)
	assert.True(t, transcript.IsDone(lines[len(lines)-1]))

	// One completion per step and nothing beyond the last relayed step.
	assert.Equal(t, int32(maxSteps), calls.Load())
	assert.Len(t, parseEvents(t, lines), 2*maxSteps)
}

func TestStreamErrorBeforeStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-key", "m")
	_, err := client.Stream(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestStreamMidStreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseChunk(w, `{"choices":[{"delta":{"content":"partial"}}]}`)
		sseChunk(w, `{"error":{"message":"rate limited","code":429}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", "m")
	stream, err := client.Stream(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	data, readErr := io.ReadAll(stream)
	require.Error(t, readErr)
	assert.Contains(t, readErr.Error(), "rate limited")

	// The partial delta was forwarded before the failure and stays
	// available as fallback text.
	assert.Contains(t, string(data), "partial")
	assert.Equal(t, "partial", stream.FinalText())
	assert.False(t, strings.Contains(string(data), transcript.DoneSignal))
}
