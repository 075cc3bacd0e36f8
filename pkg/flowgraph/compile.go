package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and returns an immutable CompiledGraph.
// All validation failures are joined into a single error.
//
// Checks, in order:
//  1. The entry point is set and names a registered node.
//  2. Every edge source and target names a registered node (targets may be END).
//  3. Every declared conditional target names a registered node or END.
//  4. Each node has exactly one way out: one fixed edge or one router.
//  5. END is reachable from the entry point.
//
// Nodes unreachable from the entry are logged as warnings only.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for _, from := range sortedKeys(g.edges) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.edges[from] {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for _, from := range sortedKeys(g.conditionalEdges) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.targets[from] {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: conditional target '%s' from '%s' does not exist", ErrNodeNotFound, to, from))
			}
		}
	}

	for _, id := range sortedKeys(g.nodes) {
		fixed := len(g.edges[id])
		_, conditional := g.conditionalEdges[id]
		switch {
		case fixed > 0 && conditional:
			errs = append(errs, fmt.Errorf("%w: %s", ErrConflictingEdges, id))
		case fixed > 1:
			errs = append(errs, fmt.Errorf("%w: %s has %d", ErrMultipleEdges, id, fixed))
		case fixed == 0 && !conditional:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
		}
	}

	if _, exists := g.nodes[g.entryPoint]; exists && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g.warnUnreachableNodes()
	return g.buildCompiledGraph(), nil
}

func (g *Graph[S]) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, exists := g.nodes[id]
	return exists
}

// successorsOf returns every node a node may hand off to. A router without
// declared targets is assumed to reach every node and END.
func (g *Graph[S]) successorsOf(id string) []string {
	if _, conditional := g.conditionalEdges[id]; conditional {
		if declared, ok := g.targets[id]; ok {
			return declared
		}
		all := append(sortedKeys(g.nodes), END)
		return all
	}
	return g.edges[id]
}

// hasPathToEnd walks forward from the entry and reports whether END is
// reachable.
func (g *Graph[S]) hasPathToEnd() bool {
	for id := range g.findReachableNodes() {
		for _, next := range g.successorsOf(id) {
			if next == END {
				return true
			}
		}
	}
	return false
}

func (g *Graph[S]) warnUnreachableNodes() {
	reachable := g.findReachableNodes()
	for _, id := range sortedKeys(g.nodes) {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}

// findReachableNodes runs a BFS from the entry point.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.successorsOf(current) {
			if next == END || reachable[next] {
				continue
			}
			if _, exists := g.nodes[next]; !exists {
				continue
			}
			reachable[next] = true
			queue = append(queue, next)
		}
	}
	return reachable
}

// buildCompiledGraph copies the builder state so later builder mutations
// cannot leak into the compiled graph.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string]string, len(g.edges))
	predecessors := make(map[string][]string)
	for from, targets := range g.edges {
		edges[from] = targets[0]
		if targets[0] != END {
			predecessors[targets[0]] = append(predecessors[targets[0]], from)
		}
	}

	routers := make(map[string]RouterFunc[S], len(g.conditionalEdges))
	declared := make(map[string][]string, len(g.targets))
	for from, router := range g.conditionalEdges {
		routers[from] = router
		if t, ok := g.targets[from]; ok {
			declared[from] = append([]string(nil), t...)
			for _, to := range t {
				if to != END {
					predecessors[to] = append(predecessors[to], from)
				}
			}
		}
	}
	for id := range predecessors {
		sort.Strings(predecessors[id])
	}

	return &CompiledGraph[S]{
		nodes:        nodes,
		edges:        edges,
		routers:      routers,
		targets:      declared,
		predecessors: predecessors,
		entryPoint:   g.entryPoint,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
