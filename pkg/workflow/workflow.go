package workflow

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	fgerrors "github.com/randalmurphal/codecanvas/pkg/flowgraph/errors"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/observability"
)

// ErrNoClient is returned by New when no generation client is given.
var ErrNoClient = errors.New("workflow: generation client is required")

// Config tunes model calls and retries.
type Config struct {
	// Model is passed on every request. Empty defers to the client default.
	Model string

	ClassifierTemperature float64
	ChatTemperature       float64
	CodeTemperature       float64

	// Retry governs generate_code retries.
	Retry fgerrors.Policy
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		ClassifierTemperature: 0.0,
		ChatTemperature:       0.7,
		CodeTemperature:       0.2,
		Retry:                 fgerrors.DefaultPolicy,
	}
}

// Workflow owns the compiled graph and is safe for concurrent use.
type Workflow struct {
	graph   *flowgraph.CompiledGraph[State]
	client  llm.Client
	cfg     Config
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	runOpts []flowgraph.RunOption
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option {
	return func(w *Workflow) { w.cfg = cfg }
}

// WithModel sets Config.Model.
func WithModel(model string) Option {
	return func(w *Workflow) { w.cfg.Model = model }
}

// WithSleeper replaces the backoff sleeper. Intended for tests.
func WithSleeper(s fgerrors.Sleeper) Option {
	return func(w *Workflow) { w.cfg.Retry = w.cfg.Retry.WithSleeper(s) }
}

// WithLogger sets the logger handed to stages.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetricsRecorder records retries and fragment counts, and is also
// handed to the executor for stage and run metrics.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(w *Workflow) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithRunOptions adds executor options applied to every run.
func WithRunOptions(opts ...flowgraph.RunOption) Option {
	return func(w *Workflow) { w.runOpts = append(w.runOpts, opts...) }
}

// New builds the workflow and compiles its graph.
func New(client llm.Client, opts ...Option) (*Workflow, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	w := &Workflow{
		client:  client,
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(w)
	}
	graph, err := w.buildGraph()
	if err != nil {
		return nil, err
	}
	w.graph = graph
	return w, nil
}

// Graph returns the compiled graph.
func (w *Workflow) Graph() *flowgraph.CompiledGraph[State] {
	return w.graph
}

// Steps runs req through the graph and yields the executor's events.
func (w *Workflow) Steps(ctx context.Context, req Request) iter.Seq2[flowgraph.Step[State], error] {
	fctx := flowgraph.NewContext(ctx,
		flowgraph.WithLLM(w.client),
		flowgraph.WithLogger(w.logger),
		flowgraph.WithContextRunID(req.ID),
	)
	opts := append([]flowgraph.RunOption{
		flowgraph.WithGraphName("codecanvas"),
		flowgraph.WithMetricsRecorder(w.metrics),
	}, w.runOpts...)
	return w.graph.Stream(fctx, NewState(req), opts...)
}

// Generate runs req and yields the framed output: a CHAT: or CODE: marker
// followed by fragments, or a single ERROR: chunk. A *StreamError is yielded
// if the provider fails after a marker was sent.
//
//	for chunk, err := range wf.Generate(ctx, req) {
//	    if err != nil {
//	        return err // output is truncated
//	    }
//	    io.WriteString(w, chunk)
//	}
func (w *Workflow) Generate(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var kind string
		var fragments int64
		defer func() {
			if kind != "" {
				w.metrics.RecordFragments(ctx, kind, fragments)
			}
		}()
		for chunk, err := range Multiplex(w.Steps(ctx, req)) {
			if err == nil {
				switch {
				case kind == "" && chunk == MarkerChat:
					kind = "chat"
				case kind == "" && chunk == MarkerCode:
					kind = "code"
				case kind != "":
					fragments++
				}
			}
			if !yield(chunk, err) {
				return
			}
		}
	}
}
