package flowgraph

// END is the terminal sentinel. It is a valid edge target but never a node.
const END = "__end__"

// NodeFunc is the body of a node. It receives the execution context and the
// current state by value and returns the state to hand to the next node.
//
// A node must not keep a reference to the state (or anything reachable from
// it) after returning. Domain failures that should influence routing belong
// in the state; a returned error aborts the run.
//
// Example:
//
//	func classify(ctx flowgraph.Context, s State) (State, error) {
//	    s.Intent = IntentChat
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc picks the next node for a conditional edge. It must return a
// registered node ID or END and should not block.
//
// Example:
//
//	func route(ctx flowgraph.Context, s State) string {
//	    if s.Err != "" {
//	        return "generate"
//	    }
//	    return flowgraph.END
//	}
type RouterFunc[S any] func(ctx Context, state S) string

// Step is one event produced by Stream: the node that just completed and the
// state it returned. The final Step of a successful run carries END as its
// NodeID and the terminal state.
type Step[S any] struct {
	NodeID string
	State  S
}

// Terminal reports whether the step is the END marker.
func (s Step[S]) Terminal() bool {
	return s.NodeID == END
}
