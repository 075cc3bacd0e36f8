package workflow

import (
	"fmt"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
)

// transition is one row of the routing table. Exactly one of to and route
// is set; targets lists every stage route may return.
type transition struct {
	from    Stage
	to      Stage
	route   func(w *Workflow) flowgraph.RouterFunc[State]
	targets []Stage
}

// entry is the first stage of every run.
const entry = StageClassifyIntent

// transitions is the complete routing table.
var transitions = []transition{
	{
		from:    StageClassifyIntent,
		route:   func(*Workflow) flowgraph.RouterFunc[State] { return routeByIntent },
		targets: []Stage{StagePrepareCodePrompt, StageChat},
	},
	{from: StageChat, to: End},
	{from: StagePrepareCodePrompt, to: StageGenerateCode},
	{
		from:    StageGenerateCode,
		route:   func(w *Workflow) flowgraph.RouterFunc[State] { return w.handleError },
		targets: []Stage{StageGenerateCode, End},
	},
}

func (w *Workflow) stageFunc(stage Stage) flowgraph.NodeFunc[State] {
	switch stage {
	case StageClassifyIntent:
		return w.classifyIntent
	case StageChat:
		return w.chat
	case StagePrepareCodePrompt:
		return w.prepareCodePrompt
	case StageGenerateCode:
		return w.generateCode
	default:
		return nil
	}
}

func (w *Workflow) buildGraph() (*flowgraph.CompiledGraph[State], error) {
	g := flowgraph.NewGraph[State]()
	for _, stage := range Stages {
		fn := w.stageFunc(stage)
		if fn == nil {
			return nil, fmt.Errorf("workflow: stage %q has no function", stage)
		}
		g.AddNode(string(stage), fn)
	}
	for _, t := range transitions {
		if t.route == nil {
			g.AddEdge(string(t.from), string(t.to))
			continue
		}
		targets := make([]string, len(t.targets))
		for i, target := range t.targets {
			targets[i] = string(target)
		}
		g.AddConditionalEdge(string(t.from), t.route(w), targets...)
	}
	g.SetEntry(string(entry))
	return g.Compile()
}
