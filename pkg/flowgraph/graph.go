package flowgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for an execution graph. Build it from a single
// goroutine, then call Compile to obtain an immutable CompiledGraph that can
// be shared by any number of concurrent runs.
//
//	graph := flowgraph.NewGraph[State]().
//	    AddNode("classify", classify).
//	    AddNode("chat", chat).
//	    AddConditionalEdge("classify", route).
//	    AddEdge("chat", flowgraph.END).
//	    SetEntry("classify")
//
//	compiled, err := graph.Compile()
type Graph[S any] struct {
	mu               sync.RWMutex
	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	targets          map[string][]string
	entryPoint       string
}

// NewGraph creates an empty graph builder for state type S.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
		targets:          make(map[string][]string),
	}
}

// AddNode registers a named node.
//
// Panics if the id is empty, contains whitespace, is a spelling of END, is
// already registered, or if fn is nil. These are programming errors in the
// graph definition, not runtime conditions.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}
	lower := strings.ToLower(id)
	if lower == "end" || lower == END {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}
	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}
	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}
	g.nodes[id] = fn
	return g
}

// AddEdge adds a fixed transition. The target may be END.
// References are checked by Compile, so edges can be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge attaches a router to a node. The optional targets
// declare every ID the router may return; when given, Compile verifies them
// and uses them for reachability analysis instead of assuming the router can
// reach any node.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S], targets ...string) *Graph[S] {
	if router == nil {
		panic("flowgraph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conditionalEdges[from] = router
	if len(targets) > 0 {
		g.targets[from] = append([]string(nil), targets...)
	}
	return g
}

// SetEntry designates the first node to run.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
