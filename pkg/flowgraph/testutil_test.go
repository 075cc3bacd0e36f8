package flowgraph

import (
	"context"
	"sync"
	"time"
)

// Counter is a minimal state.
type Counter struct {
	Value int
}

// Trail records the nodes a run passed through.
type Trail struct {
	Visited  []string
	Attempts int
	Err      string
	Done     bool
}

func increment(_ Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

func passthrough[S any](_ Context, s S) (S, error) {
	return s, nil
}

// visit appends the node name to the trail.
func visit(name string) NodeFunc[Trail] {
	return func(_ Context, s Trail) (Trail, error) {
		s.Visited = append(s.Visited, name)
		return s, nil
	}
}

func failWith(err error) NodeFunc[Trail] {
	return func(_ Context, s Trail) (Trail, error) {
		return s, err
	}
}

func panicWith(value any) NodeFunc[Trail] {
	return func(_ Context, _ Trail) (Trail, error) {
		panic(value)
	}
}

func testCtx() Context {
	return NewContext(context.Background())
}

// mustCompile compiles g or panics.
func mustCompile[S any](g *Graph[S]) *CompiledGraph[S] {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

// linearGraph is a -> b -> c -> END over Trail.
func linearGraph() *CompiledGraph[Trail] {
	return mustCompile(NewGraph[Trail]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddNode("c", visit("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a"))
}

// recordingMetrics is a MetricsRecorder that keeps every call.
type recordingMetrics struct {
	mu    sync.Mutex
	nodes []nodeRecord
	runs  []bool
}

type nodeRecord struct {
	nodeID string
	failed bool
}

func (r *recordingMetrics) RecordNodeExecution(_ context.Context, nodeID string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes = append(r.nodes, nodeRecord{nodeID: nodeID, failed: err != nil})
}

func (r *recordingMetrics) RecordGraphRun(_ context.Context, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, success)
}

func (r *recordingMetrics) RecordRetry(context.Context, string, bool)      {}
func (r *recordingMetrics) RecordFragments(context.Context, string, int64) {}
