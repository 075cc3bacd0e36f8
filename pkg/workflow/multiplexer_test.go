package workflow

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

type event struct {
	step flowgraph.Step[State]
	err  error
}

func events(evs ...event) iter.Seq2[flowgraph.Step[State], error] {
	return func(yield func(flowgraph.Step[State], error) bool) {
		for _, ev := range evs {
			if !yield(ev.step, ev.err) {
				return
			}
		}
	}
}

func step(node string, s State) event {
	return event{step: flowgraph.Step[State]{NodeID: node, State: s}}
}

func TestMultiplex_ChatMarker(t *testing.T) {
	out, _, err := drainOutput(Multiplex(events(
		step("classify_intent", State{Intent: IntentChat}),
		step("chat", State{Intent: IntentChat, ChatOutput: llm.StreamOf("a", "b")}),
		step(flowgraph.END, State{}),
	)))
	require.NoError(t, err)
	assert.Equal(t, "CHAT:ab", out)
}

func TestMultiplex_OnlyFirstOutputIsForwarded(t *testing.T) {
	code := llm.StreamOf("code")
	out, _, err := drainOutput(Multiplex(events(
		step("generate_code", State{CodeOutput: code}),
		step("chat", State{ChatOutput: llm.StreamOf("chat")}),
		step(flowgraph.END, State{CodeOutput: code}),
	)))
	require.NoError(t, err)
	assert.Equal(t, "CODE:code", out)
}

func TestMultiplex_TerminalError(t *testing.T) {
	out, chunks, err := drainOutput(Multiplex(events(
		step("generate_code", State{Intent: IntentCodeGeneration, ErrorMessage: "bad"}),
		step(flowgraph.END, State{Intent: IntentCodeGeneration, ErrorMessage: "bad"}),
	)))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: An error occurred: bad", out)
	assert.Len(t, chunks, 1)
}

func TestMultiplex_ExecutorErrorBeforeMarker(t *testing.T) {
	out, _, err := drainOutput(Multiplex(events(
		step("classify_intent", State{}),
		event{err: errors.New("node panicked")},
	)))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: node panicked", out)
}

func TestMultiplex_ExecutorErrorAfterMarkerIsDropped(t *testing.T) {
	out, _, err := drainOutput(Multiplex(events(
		step("chat", State{ChatOutput: llm.StreamOf("x")}),
		event{err: errors.New("late")},
	)))
	require.NoError(t, err)
	assert.Equal(t, "CHAT:x", out)
}

func TestMultiplex_NoOutput(t *testing.T) {
	out, _, err := drainOutput(Multiplex(events(step(flowgraph.END, State{}))))
	require.NoError(t, err)
	assert.Equal(t, "ERROR: no output produced", out)
}

func TestStreamError(t *testing.T) {
	cause := errors.New("reset")
	err := &StreamError{Marker: MarkerChat, Err: cause}
	assert.Equal(t, "stream failed after CHAT: marker: reset", err.Error())
	assert.ErrorIs(t, err, cause)
}
