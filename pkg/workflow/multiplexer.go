package workflow

import (
	"fmt"
	"iter"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

// Stream markers. A framed stream starts with exactly one of them.
const (
	MarkerChat  = "CHAT:"
	MarkerCode  = "CODE:"
	MarkerError = "ERROR: "
)

// StreamError reports a provider failure after Marker was already emitted.
// The output is truncated and must not be treated as complete.
type StreamError struct {
	Marker string
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream failed after %s marker: %v", e.Marker, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// Multiplex frames executor events into the client-facing stream.
//
// The first event carrying an output stream emits its marker and forwards
// its fragments in order, pulling each one only when the consumer asks.
// When no marker was emitted, an executor error or a terminal error text
// becomes a single "ERROR: <message>" chunk. After a marker, failures are
// yielded as *StreamError and never as text.
func Multiplex(steps iter.Seq2[flowgraph.Step[State], error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		emitted := false
		for step, err := range steps {
			if err != nil {
				if !emitted {
					yield(MarkerError+err.Error(), nil)
				}
				return
			}
			s := step.State
			if !emitted {
				switch {
				case s.ChatOutput != nil:
					emitted = true
					if !forward(MarkerChat, s.ChatOutput, yield) {
						return
					}
				case s.CodeOutput != nil:
					emitted = true
					if !forward(MarkerCode, s.CodeOutput, yield) {
						return
					}
				case step.Terminal():
					msg := s.TerminalError()
					if msg == "" {
						msg = "no output produced"
					}
					yield(MarkerError+msg, nil)
					return
				}
			}
			if step.Terminal() {
				return
			}
		}
	}
}

// forward emits marker and then out's fragments. It reports whether the
// stream completed and the consumer still wants more.
func forward(marker string, out *llm.Stream, yield func(string, error) bool) bool {
	defer out.Close()
	if !yield(marker, nil) {
		return false
	}
	for frag, err := range out.All() {
		if err != nil {
			yield("", &StreamError{Marker: marker, Err: err})
			return false
		}
		if !yield(frag, nil) {
			return false
		}
	}
	return true
}
