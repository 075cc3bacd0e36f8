package main

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/codecanvas/pkg/config"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm/anthropic"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/llm/openai"
	"github.com/randalmurphal/codecanvas/pkg/flowgraph/observability"
	"github.com/randalmurphal/codecanvas/pkg/workflow"
)

// newClient builds the generation client for the configured provider.
// Replaced in tests.
var newClient = buildClient

func buildClient(p config.ProviderConfig) (llm.Client, error) {
	switch p.Name {
	case config.ProviderGemini, config.ProviderOpenAI:
		return openai.New(func(o *openai.Options) {
			o.APIKey = p.APIKey
			o.Model = p.ResolvedModel()
			o.MaxTokens = int64(p.MaxTokens)
			switch {
			case p.BaseURL != "":
				o.BaseURL = p.BaseURL
			case p.Name == config.ProviderOpenAI:
				// The SDK default endpoint.
				o.BaseURL = ""
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.New(func(o *anthropic.Options) {
			o.APIKey = p.APIKey
			o.BaseURL = p.BaseURL
			o.Model = p.ResolvedModel()
			if p.MaxTokens > 0 {
				o.MaxTokens = int64(p.MaxTokens)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

// newWorkflow assembles the workflow from configuration.
func newWorkflow(cfg config.Config, logger *slog.Logger) (*workflow.Workflow, error) {
	client, err := newClient(cfg.Provider)
	if err != nil {
		return nil, err
	}

	opts := []workflow.Option{
		workflow.WithModel(cfg.Provider.ResolvedModel()),
		workflow.WithLogger(logger),
		workflow.WithRunOptions(
			flowgraph.WithObservabilityLogger(logger),
			flowgraph.WithTracing(cfg.Observability.Tracing),
		),
	}
	if cfg.Observability.Metrics {
		opts = append(opts, workflow.WithMetricsRecorder(observability.NewMetricsRecorder()))
	}
	return workflow.New(client, opts...)
}
