package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
)

// Context is the execution context handed to nodes and routers. It extends
// context.Context with the services a node needs and run metadata.
//
// A Context is immutable; the executor derives a per-node copy with NodeID
// set and the logger enriched.
type Context interface {
	context.Context

	// Logger returns the run logger, enriched with run_id and node_id.
	// Never nil.
	Logger() *slog.Logger

	// LLM returns the generation client, or nil if none was configured.
	LLM() llm.Client

	// RunID returns the identifier of this run. Generated if not configured.
	RunID() string

	// NodeID returns the node currently executing, or "" outside a node.
	NodeID() string
}

type executionContext struct {
	context.Context

	logger    *slog.Logger
	llmClient llm.Client
	runID     string
	nodeID    string
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) LLM() llm.Client      { return c.llmClient }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) NodeID() string       { return c.nodeID }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLLM sets the generation client available to nodes.
func WithLLM(client llm.Client) ContextOption {
	return func(c *executionContext) {
		c.llmClient = client
	}
}

// WithContextRunID sets the run identifier instead of generating a UUID.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext wraps ctx with flowgraph services.
//
//	ctx := flowgraph.NewContext(r.Context(),
//	    flowgraph.WithLLM(client),
//	    flowgraph.WithContextRunID(requestID))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// withNodeID derives the per-node context. The wrapped context.Context may be
// replaced (for example by one carrying a tracing span).
func (c *executionContext) withNodeID(parent context.Context, nodeID string) *executionContext {
	return &executionContext{
		Context:   parent,
		logger:    c.logger.With("run_id", c.runID, "node_id", nodeID),
		llmClient: c.llmClient,
		runID:     c.runID,
		nodeID:    nodeID,
	}
}

// nodeContext returns the Context a node or router should see. Contexts not
// created by NewContext are passed through unchanged.
func nodeContext(ctx Context, parent context.Context, nodeID string) Context {
	if ec, ok := ctx.(*executionContext); ok {
		return ec.withNodeID(parent, nodeID)
	}
	return ctx
}
