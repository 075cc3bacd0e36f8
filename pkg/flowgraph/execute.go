package flowgraph

import (
	"context"
	"fmt"
	"iter"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run executes the graph to completion and returns the terminal state.
// On error the returned state is the state at the point of failure.
//
//	ctx := flowgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, initialState)
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (S, error) {
	result := state
	for step, err := range cg.Stream(ctx, state, opts...) {
		result = step.State
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// Stream returns a lazy, single-pass sequence of steps. Each pull executes
// exactly one node and yields (nodeID, returned state); the next node is
// resolved only when the consumer asks for the following step. A successful
// run ends with a Step whose NodeID is END.
//
// When the consumer stops ranging, the run stops before routing or
// executing anything further. Execution errors are yielded once, together
// with the state at the point of failure, and end the sequence.
//
//	for step, err := range compiled.Stream(ctx, state) {
//	    if err != nil {
//	        return err
//	    }
//	    if step.Terminal() {
//	        break
//	    }
//	}
func (cg *CompiledGraph[S]) Stream(ctx Context, state S, opts ...RunOption) iter.Seq2[Step[S], error] {
	return func(yield func(Step[S], error) bool) {
		if ctx == nil {
			yield(Step[S]{State: state}, ErrNilContext)
			return
		}
		cfg := defaultRunConfig()
		for _, opt := range opts {
			opt(&cfg)
		}
		cg.execute(ctx, state, &cfg, yield)
	}
}

// execute drives the run loop, wrapping it in run-level observability.
func (cg *CompiledGraph[S]) execute(ctx Context, state S, cfg *runConfig, yield func(Step[S], error) bool) {
	runID := ctx.RunID()
	start := time.Now()
	observability.LogRunStart(cfg.logger, runID)

	var tracingCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, cfg.graphName, runID)
	}

	nodeCount, completed, runErr := cg.loop(ctx, tracingCtx, state, cfg, yield)

	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())
	cfg.metrics.RecordGraphRun(tracingCtx, runErr == nil && completed, duration)
	if cfg.tracingEnabled {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}

	switch {
	case runErr != nil:
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, lastNodeOf(runErr))
	case !completed:
		observability.LogRunAbandoned(cfg.logger, runID, durationMs, nodeCount)
	default:
		observability.LogRunComplete(cfg.logger, runID, durationMs, nodeCount)
	}
}

// loop executes nodes until END, an error, or the consumer stops pulling.
// completed is true only when END was reached and yielded.
func (cg *CompiledGraph[S]) loop(
	ctx Context,
	tracingCtx context.Context,
	state S,
	cfg *runConfig,
	yield func(Step[S], error) bool,
) (nodeCount int, completed bool, runErr error) {
	current := cg.entryPoint

	for iterations := 1; ; iterations++ {
		if current == END {
			return nodeCount, yield(Step[S]{NodeID: END, State: state}, nil), nil
		}

		if iterations > cfg.maxIterations {
			runErr = &MaxIterationsError{Max: cfg.maxIterations, LastNodeID: current, State: state}
			yield(Step[S]{NodeID: current, State: state}, runErr)
			return nodeCount, false, runErr
		}

		if err := ctx.Err(); err != nil {
			runErr = &CancellationError{NodeID: current, State: state, Cause: err}
			yield(Step[S]{NodeID: current, State: state}, runErr)
			return nodeCount, false, runErr
		}

		observability.LogNodeStart(cfg.logger, current)
		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()
		var nodeErr error
		state, nodeErr = cg.executeNode(ctx, nodeTracingCtx, current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				nodeErr = &CancellationError{NodeID: current, State: state, Cause: ctxErr, WasExecuting: true}
			}
			observability.LogNodeError(cfg.logger, current, nodeErr)
			yield(Step[S]{NodeID: current, State: state}, nodeErr)
			return nodeCount, false, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Milliseconds()))
		nodeCount++

		if !yield(Step[S]{NodeID: current, State: state}, nil) {
			return nodeCount, false, nil
		}

		next, err := cg.nextNode(ctx, tracingCtx, state, current)
		if err != nil {
			yield(Step[S]{NodeID: current, State: state}, err)
			return nodeCount, false, err
		}
		current = next
	}
}

// executeNode runs one node with panic recovery.
func (cg *CompiledGraph[S]) executeNode(ctx Context, parent context.Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.nodes[nodeID]
	if !exists {
		return state, &NodeError{NodeID: nodeID, Op: "lookup", Err: fmt.Errorf("node not found: %s", nodeID)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{NodeID: nodeID, Value: r, Stack: string(debug.Stack())}
		}
	}()

	result, err = fn(nodeContext(ctx, parent, nodeID), state)
	if err != nil {
		return result, &NodeError{NodeID: nodeID, Op: "execute", Err: err}
	}
	return result, nil
}

// nextNode resolves the transition out of current: the router if there is
// one, otherwise the fixed edge.
func (cg *CompiledGraph[S]) nextNode(ctx Context, parent context.Context, state S, current string) (string, error) {
	if router, ok := cg.routers[current]; ok {
		next := router(nodeContext(ctx, parent, current), state)
		if next == "" {
			return "", &RouterError{FromNode: current, Returned: next, Err: ErrInvalidRouterResult}
		}
		if next != END && !cg.HasNode(next) {
			return "", &RouterError{FromNode: current, Returned: next, Err: ErrRouterTargetNotFound}
		}
		return next, nil
	}

	next, ok := cg.edges[current]
	if !ok {
		return "", &NodeError{NodeID: current, Op: "routing", Err: fmt.Errorf("no outgoing edge from node %s", current)}
	}
	return next, nil
}
