package transcript

import "strings"

// Accumulator rebuilds an ordered transcript from a live event sequence.
// It is a synchronous state machine: one Consume call per event, then a
// single Finalize once the stream has ended. Contiguous text deltas collapse
// into a single pending buffer that is flushed, trimmed, as one text part
// whenever a tool call interrupts the prose or the stream ends.
type Accumulator struct {
	pending   strings.Builder
	parts     []Part
	finalized bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Consume applies one upstream event to the accumulator state.
// Events of unknown type are ignored. Consume after Finalize is a no-op.
func (a *Accumulator) Consume(ev Event) {
	if a.finalized {
		return
	}
	switch ev.Type {
	case EventTextDelta:
		a.pending.WriteString(ev.Delta)
	case EventToolInput:
		a.flushPending()
		a.parts = append(a.parts, ToolCallPart(ev.ToolCallID, ev.ToolName, ev.Input))
	case EventToolOutput:
		// Results are emitted immediately; they never depend on buffer state.
		a.parts = append(a.parts, ToolResultPart(ev.ToolCallID, OutputText(ev.Output)))
	}
}

// flushPending emits the pending text buffer as a text part if it is
// non-empty after trimming, then clears it.
func (a *Accumulator) flushPending() {
	text := strings.TrimSpace(a.pending.String())
	a.pending.Reset()
	if text != "" {
		a.parts = append(a.parts, TextPart(text))
	}
}

// Finalize flushes any remaining pending text and returns the finished part
// sequence. If the stream produced no parts at all but the upstream adapter
// reported non-empty final text through its fallback channel, a single text
// part is synthesized from it so the turn is never persisted empty.
// Finalize is idempotent; later calls return the same sequence.
func (a *Accumulator) Finalize(fallbackText string) []Part {
	if a.finalized {
		return a.parts
	}
	a.finalized = true
	a.flushPending()
	if len(a.parts) == 0 {
		if text := strings.TrimSpace(fallbackText); text != "" {
			a.parts = append(a.parts, TextPart(text))
		}
	}
	return a.parts
}
