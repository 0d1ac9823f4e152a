// Package upstream generates assistant turns by driving an OpenAI-compatible
// chat completions API (OpenRouter by default) and translating its stream
// into protocol lines. Tool calls requested by the model are executed inline
// between steps, so the emitted stream interleaves text deltas with tool
// input and output events exactly as they happened.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"chatstream-backend/internal/tools"
	"chatstream-backend/internal/transcript"
)

// maxSteps bounds the generate/execute loop so a model that keeps asking
// for tools cannot spin forever.
const maxSteps = 10

// Client talks to one chat completions endpoint. A single instance is
// shared across requests.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates the upstream client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// ChatMessage is one entry of the conversation sent upstream.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Request describes one generation: the prompt history plus the capability
// set the model may invoke.
type Request struct {
	Messages     []ChatMessage
	Capabilities *tools.Registry
}

// Stream is a live generation. Read protocol lines from it until EOF; the
// terminating line is the done signal. FinalText blocks until generation
// finishes and returns the concatenated text across all steps, used as
// fallback content when the stream produced no parts.
type Stream struct {
	pr        *io.PipeReader
	done      chan struct{}
	finalText string
}

func (s *Stream) Read(p []byte) (int, error) { return s.pr.Read(p) }

// Close abandons the stream. The generation goroutine stops at its next
// write.
func (s *Stream) Close() error { return s.pr.CloseWithError(io.ErrClosedPipe) }

// FinalText returns the full generated text once the stream has ended.
func (s *Stream) FinalText() string {
	<-s.done
	return s.finalText
}

// Stream starts a generation. The first upstream call is issued before
// returning, so an API that is down surfaces as an error here rather than
// as a broken stream. Later failures close the stream with the error.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	messages := make([]ChatMessage, len(req.Messages))
	copy(messages, req.Messages)

	first, err := c.openCompletion(ctx, messages, req.Capabilities)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	s := &Stream{pr: pr, done: make(chan struct{})}

	go func() {
		defer close(s.done)

		var total strings.Builder
		resp := first
		for step := 0; step < maxSteps; step++ {
			text, calls, err := c.relayStep(ctx, resp, pw)
			total.WriteString(text)
			if err != nil {
				pw.CloseWithError(err)
				s.finalText = total.String()
				return
			}
			if len(calls) == 0 {
				break
			}

			messages = append(messages, ChatMessage{
				Role:      "assistant",
				Content:   text,
				ToolCalls: calls,
			})
			for _, call := range calls {
				output := c.executeCall(ctx, req.Capabilities, call, pw)
				messages = append(messages, ChatMessage{
					Role:       "tool",
					Content:    output,
					ToolCallID: call.ID,
				})
			}

			// The step budget is spent; a follow-up completion would never
			// be relayed.
			if step == maxSteps-1 {
				break
			}

			resp, err = c.openCompletion(ctx, messages, req.Capabilities)
			if err != nil {
				pw.CloseWithError(err)
				s.finalText = total.String()
				return
			}
		}

		writeLine(pw, transcript.DoneLine())
		s.finalText = total.String()
		pw.Close()
	}()

	return s, nil
}

// executeCall runs one tool invocation and emits its input and output
// events. Execution failures are reported to the model as output text so
// the turn can continue.
func (c *Client) executeCall(ctx context.Context, reg *tools.Registry, call toolCall, pw *io.PipeWriter) string {
	args := json.RawMessage(call.Function.Arguments)
	if len(args) == 0 || !json.Valid(args) {
		args = json.RawMessage(`{}`)
	}
	writeLine(pw, transcript.EncodeLine(transcript.Event{
		Type:       transcript.EventToolInput,
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
		Input:      args,
	}))

	var output string
	if reg == nil {
		output = fmt.Sprintf("Error: no capability registered for tool: %s", call.Function.Name)
	} else {
		result, err := reg.Execute(ctx, call.Function.Name, args)
		if err != nil {
			log.Printf("WARN [Upstream] executeCall: tool %s failed: %v", call.Function.Name, err)
			output = fmt.Sprintf("Error: %v", err)
		} else {
			output = result
		}
	}

	outputJSON, _ := json.Marshal(output)
	writeLine(pw, transcript.EncodeLine(transcript.Event{
		Type:       transcript.EventToolOutput,
		ToolCallID: call.ID,
		Output:     outputJSON,
	}))
	return output
}

// writeLine writes one protocol line. EncodeLine output already carries the
// trailing newline.
func writeLine(pw *io.PipeWriter, line string) {
	io.WriteString(pw, line)
}

// Chat completions wire types. Only the fields this client reads or writes.

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type completionRequest struct {
	Model    string           `json:"model"`
	Messages []ChatMessage    `json:"messages"`
	Tools    []toolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type toolDefinition struct {
	Type     string             `json:"type"`
	Function functionDefinition `json:"function"`
}

type functionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chunkToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id"`
	Function toolCallFunction `json:"function"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []chunkToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("upstream api error (code %v): %s", e.Code, e.Message)
}

// openCompletion issues one streaming chat completions call and returns the
// open response body.
func (c *Client) openCompletion(ctx context.Context, messages []ChatMessage, reg *tools.Registry) (*http.Response, error) {
	payload := completionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	if reg != nil {
		for _, cap := range reg.List() {
			payload.Tools = append(payload.Tools, toolDefinition{
				Type: "function",
				Function: functionDefinition{
					Name:        cap.Name,
					Description: cap.Description,
					Parameters:  cap.InputSchema,
				},
			})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return resp, nil
}

// relayStep consumes one streaming response, forwarding text deltas as
// protocol lines and accumulating any tool call fragments. It returns the
// step's full text and the assembled tool calls.
func (c *Client) relayStep(ctx context.Context, resp *http.Response, pw *io.PipeWriter) (string, []toolCall, error) {
	defer resp.Body.Close()

	var (
		text    strings.Builder
		pending []toolCall
		byIndex = make(map[int]int)
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Printf("WARN [Upstream] relayStep: skipping malformed chunk: %v", err)
			continue
		}
		if chunk.Error != nil {
			return text.String(), nil, chunk.Error
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			writeLine(pw, transcript.EncodeLine(transcript.Event{
				Type:  transcript.EventTextDelta,
				Delta: delta.Content,
			}))
		}

		for _, fragment := range delta.ToolCalls {
			idx, seen := byIndex[fragment.Index]
			if !seen {
				byIndex[fragment.Index] = len(pending)
				idx = len(pending)
				pending = append(pending, toolCall{Type: "function"})
			}
			if fragment.ID != "" {
				pending[idx].ID = fragment.ID
			}
			if fragment.Function.Name != "" {
				pending[idx].Function.Name = fragment.Function.Name
			}
			pending[idx].Function.Arguments += fragment.Function.Arguments
		}
	}
	if err := scanner.Err(); err != nil {
		return text.String(), nil, fmt.Errorf("upstream stream failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return text.String(), nil, err
	}

	return text.String(), pending, nil
}
