package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Consumer is the client-side state machine that turns the forwarded wire
// stream into a continuously updated message list. Bytes may arrive split at
// arbitrary boundaries; the consumer keeps the last incomplete line in a
// carry-over buffer between feeds. Every event that changes state replaces
// the open assistant message with a fresh immutable snapshot, so callers can
// hand out Messages() without worrying about later mutation.
type Consumer struct {
	carry       string
	text        strings.Builder
	invocations []ToolInvocation

	messages  []RenderedMessage
	openIndex int
	openID    string
	openedAt  time.Time

	now func() time.Time
}

// NewConsumer returns a consumer with an empty message list.
func NewConsumer() *Consumer {
	return &Consumer{openIndex: -1, now: time.Now}
}

// AddMessage appends a completed message (typically the user's prompt) to
// the visible list and closes any open assistant message.
func (c *Consumer) AddMessage(role, content string) RenderedMessage {
	c.EndMessage()
	msg := RenderedMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: c.now(),
	}
	c.messages = append(c.messages, msg)
	return msg
}

// Feed consumes a chunk of the forwarded byte stream. A trailing partial
// line is held back until the rest of it arrives.
func (c *Consumer) Feed(p []byte) {
	c.carry += string(p)
	for {
		idx := strings.IndexByte(c.carry, '\n')
		if idx < 0 {
			return
		}
		line := c.carry[:idx]
		c.carry = c.carry[idx+1:]
		c.consumeLine(line)
	}
}

// EndMessage flushes any unterminated carry-over line and closes the open
// assistant message, so the next stream opens a new one.
func (c *Consumer) EndMessage() {
	if c.carry != "" {
		line := c.carry
		c.carry = ""
		c.consumeLine(line)
	}
	c.openIndex = -1
	c.openID = ""
	c.text.Reset()
	c.invocations = nil
}

func (c *Consumer) consumeLine(line string) {
	ev, ok := ParseLine(strings.TrimRight(line, "\r"))
	if !ok {
		// Non-protocol and malformed lines are ignored without error.
		return
	}

	switch ev.Type {
	case EventTextDelta:
		c.text.WriteString(ev.Delta)
	case EventToolInput:
		c.invocations = append(c.invocations, ToolInvocation{
			ID:        ev.ToolCallID,
			Name:      ev.ToolName,
			Arguments: ev.Input,
		})
	case EventToolOutput:
		attached := false
		for i := range c.invocations {
			if c.invocations[i].ID == ev.ToolCallID {
				result := OutputText(ev.Output)
				c.invocations[i].Result = &result
				attached = true
				break
			}
		}
		if !attached {
			return
		}
	default:
		return
	}

	c.render()
}

// render publishes a fresh snapshot of the in-flight assistant message,
// replacing the previous snapshot in place or appending a new message if
// none is open yet.
func (c *Consumer) render() {
	if c.openIndex < 0 {
		c.openID = uuid.NewString()
		c.openedAt = c.now()
		c.messages = append(c.messages, RenderedMessage{})
		c.openIndex = len(c.messages) - 1
	}
	c.messages[c.openIndex] = RenderedMessage{
		ID:          c.openID,
		Role:        "assistant",
		Content:     c.text.String(),
		Timestamp:   c.openedAt,
		Invocations: c.snapshotInvocations(),
	}
}

func (c *Consumer) snapshotInvocations() []ToolInvocation {
	if len(c.invocations) == 0 {
		return nil
	}
	out := make([]ToolInvocation, len(c.invocations))
	for i, inv := range c.invocations {
		out[i] = inv
		if inv.Result != nil {
			result := *inv.Result
			out[i].Result = &result
		}
	}
	return out
}

// Messages returns the visible message list. Elements are immutable
// snapshots; the slice itself is reused between calls.
func (c *Consumer) Messages() []RenderedMessage {
	return c.messages
}

// Current returns the open assistant message, if one is mid-stream.
func (c *Consumer) Current() (RenderedMessage, bool) {
	if c.openIndex < 0 {
		return RenderedMessage{}, false
	}
	return c.messages[c.openIndex], true
}
