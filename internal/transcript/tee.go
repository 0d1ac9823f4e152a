package transcript

import (
	"bufio"
	"errors"
	"io"
	"log"
	"strings"
)

// Tee relays one upstream event stream to an outbound sink byte-for-byte
// while feeding a private copy of every complete line to an Accumulator.
// Forwarding always happens before parsing, and a line that fails to parse
// is still forwarded verbatim — the transcoder never alters or delays the
// live response because of its side channel.
//
// Exactly one Tee is created per request and it owns the upstream reader
// exclusively. Fan-out to the accumulator goes through an explicit channel
// so the relay loop and the transcript build stay independent; line order is
// preserved because the channel has a single producer and single consumer.
type Tee struct {
	acc *Accumulator

	// writeBroken is set once the sink rejects a write (client disconnect).
	// The relay keeps draining the upstream so the transcript still
	// finalizes with everything the model produced.
	writeBroken bool
}

// NewTee wires a Tee to the accumulator that will receive the private copy
// of the stream.
func NewTee(acc *Accumulator) *Tee {
	return &Tee{acc: acc}
}

// Relay pumps the upstream until it ends, errors, or emits the [DONE]
// sentinel. It returns the upstream read error, if any; sink write failures
// are absorbed (logged, draining continues) so a dropped client does not
// drop the turn. The caller finalizes the accumulator afterwards on every
// path.
func (t *Tee) Relay(upstream io.Reader, sink io.Writer) error {
	lines := make(chan string, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for line := range lines {
			if ev, ok := ParseLine(strings.TrimRight(line, "\r\n")); ok {
				t.acc.Consume(ev)
			}
		}
	}()

	flusher, _ := sink.(interface{ Flush() })
	reader := bufio.NewReader(upstream)

	var readErr error
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			t.forward(sink, flusher, line)
			lines <- line
			if IsDone(line) {
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}

	close(lines)
	<-done
	return readErr
}

func (t *Tee) forward(sink io.Writer, flusher interface{ Flush() }, line string) {
	if t.writeBroken {
		return
	}
	if _, err := sink.Write([]byte(line)); err != nil {
		log.Printf("WARN [Tee] Relay: outbound sink write failed, draining upstream for transcript only: %v", err)
		t.writeBroken = true
		return
	}
	if flusher != nil {
		flusher.Flush()
	}
}

// SinkBroken reports whether the outbound sink failed mid-stream.
func (t *Tee) SinkBroken() bool {
	return t.writeBroken
}
