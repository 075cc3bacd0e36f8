package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionErrors_Messages(t *testing.T) {
	cause := errors.New("503 overloaded")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"node", &NodeError{NodeID: "generate_code", Op: "execute", Err: cause}, "node generate_code: execute: 503 overloaded"},
		{"panic", &PanicError{NodeID: "chat", Value: "nil pointer"}, "node chat panicked: nil pointer"},
		{"cancel before", &CancellationError{NodeID: "chat", Cause: context.Canceled}, "cancelled before node chat: context canceled"},
		{"cancel during", &CancellationError{NodeID: "chat", Cause: context.DeadlineExceeded, WasExecuting: true}, "cancelled during node chat: context deadline exceeded"},
		{"router", &RouterError{FromNode: "classify_intent", Returned: "", Err: ErrInvalidRouterResult}, `router from classify_intent returned "": router returned empty string`},
		{"max iterations", &MaxIterationsError{Max: 10, LastNodeID: "generate_code"}, "exceeded maximum iterations (10) at node generate_code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestExecutionErrors_Unwrap(t *testing.T) {
	cause := errors.New("cause")

	assert.ErrorIs(t, &NodeError{Err: cause}, cause)
	assert.ErrorIs(t, &CancellationError{Cause: context.Canceled}, context.Canceled)
	assert.ErrorIs(t, &RouterError{Err: ErrRouterTargetNotFound}, ErrRouterTargetNotFound)
	assert.ErrorIs(t, &MaxIterationsError{Max: 1}, ErrMaxIterations)
	assert.Nil(t, errors.Unwrap(&PanicError{}))
}

func TestLastNodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NodeError{NodeID: "a"}, "a"},
		{&PanicError{NodeID: "b"}, "b"},
		{&CancellationError{NodeID: "c"}, "c"},
		{&MaxIterationsError{LastNodeID: "d"}, "d"},
		{&RouterError{FromNode: "e"}, "e"},
		{fmt.Errorf("wrapped: %w", &NodeError{NodeID: "f"}), "f"},
		{errors.New("plain"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lastNodeOf(tt.err), tt.err.Error())
	}
}

func TestBuildErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNoEntryPoint, ErrEntryNotFound, ErrNodeNotFound, ErrNoPathToEnd,
		ErrConflictingEdges, ErrMultipleEdges, ErrNoOutgoingEdge,
		ErrMaxIterations, ErrNilContext, ErrInvalidRouterResult, ErrRouterTargetNotFound,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
