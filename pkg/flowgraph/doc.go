/*
Package flowgraph executes directed graphs of nodes over a typed state.

# Overview

A Graph[S] is built from named nodes, fixed edges and conditional edges,
then compiled into an immutable CompiledGraph[S]. Compilation rejects
dangling references, nodes with no way out or with conflicting edges, and
graphs from which END cannot be reached. A compiled graph is shared by all
concurrent runs; each run owns its own state.

# Basic Usage

	type State struct {
	    Input  string
	    Output string
	}

	func process(ctx flowgraph.Context, s State) (State, error) {
	    s.Output = "Processed: " + s.Input
	    return s, nil
	}

	graph := flowgraph.NewGraph[State]().
	    AddNode("process", process).
	    AddEdge("process", flowgraph.END).
	    SetEntry("process")

	compiled, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := flowgraph.NewContext(context.Background())
	result, err := compiled.Run(ctx, State{Input: "hello"})

# Streaming

Stream returns a lazy iter.Seq2 of steps. Each pull runs one node and
yields the node ID with the state it returned; nothing further runs until
the consumer pulls again, and breaking out of the loop ends the run. A
successful run ends with a step whose NodeID is END.

	for step, err := range compiled.Stream(ctx, state) {
	    if err != nil {
	        return err
	    }
	    fmt.Println(step.NodeID)
	}

Run is Stream drained to completion.

# Conditional Branching

A router picks the successor from the updated state. Declaring its targets
lets Compile check them and reason about reachability:

	graph.AddConditionalEdge("generate", func(ctx flowgraph.Context, s State) string {
	    if s.Err != "" && s.Attempts < 3 {
	        return "generate"
	    }
	    return flowgraph.END
	}, "generate", flowgraph.END)

A router returning an unknown node fails the run with a RouterError. Loops
are bounded by WithMaxIterations (default 1000).

# Generation Clients

Nodes reach the generation client through the Context:

	ctx := flowgraph.NewContext(r.Context(),
	    flowgraph.WithLLM(client),
	    flowgraph.WithContextRunID(requestID))

	func chat(ctx flowgraph.Context, s State) (State, error) {
	    resp, err := ctx.LLM().Complete(ctx, llm.CompletionRequest{...})
	    ...
	}

# Observability

	result, err := compiled.Run(ctx, state,
	    flowgraph.WithObservabilityLogger(logger),
	    flowgraph.WithMetrics(true),
	    flowgraph.WithTracing(true))

Logs carry run_id, node_id and duration_ms. Metrics and spans use the
global OpenTelemetry providers: flowgraph.run with one flowgraph.node.{id}
child per executed node.

# Error Handling

	var nodeErr *flowgraph.NodeError
	if errors.As(err, &nodeErr) {
	    log.Printf("node %s failed: %v", nodeErr.NodeID, nodeErr.Err)
	}

Panics in nodes are recovered into PanicError with the stack. A context
ending between nodes or inside one yields a CancellationError.

# Thread Safety

  - Graph[S] is not safe for concurrent use during construction
  - CompiledGraph[S] is safe for concurrent use
  - Context is immutable and safe to share
*/
package flowgraph
