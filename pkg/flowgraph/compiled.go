package flowgraph

import "sort"

// CompiledGraph is an immutable, executable graph created by Graph.Compile.
// It is safe for concurrent use by any number of Run and Stream calls.
type CompiledGraph[S any] struct {
	nodes        map[string]NodeFunc[S]
	edges        map[string]string
	routers      map[string]RouterFunc[S]
	targets      map[string][]string
	predecessors map[string][]string
	entryPoint   string
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node IDs in lexical order.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	return sortedKeys(cg.nodes)
}

// HasNode reports whether id is a registered node.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the possible next nodes of id: the fixed edge target, or
// the declared targets of its router. Returns nil for END, unknown nodes and
// routers without declared targets.
func (cg *CompiledGraph[S]) Successors(id string) []string {
	if next, ok := cg.edges[id]; ok {
		return []string{next}
	}
	if t, ok := cg.targets[id]; ok {
		out := append([]string(nil), t...)
		sort.Strings(out)
		return out
	}
	return nil
}

// Predecessors returns the nodes with a fixed edge or declared conditional
// target pointing at id.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional reports whether id leaves through a router.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, ok := cg.routers[id]
	return ok
}
