package flowgraph

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/codecanvas/pkg/flowgraph/observability"
)

func TestDefaultRunConfig(t *testing.T) {
	cfg := defaultRunConfig()

	assert.Equal(t, 1000, cfg.maxIterations)
	assert.Equal(t, "flowgraph", cfg.graphName)
	assert.Nil(t, cfg.logger)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)
	assert.False(t, cfg.tracingEnabled)
}

func TestRunOptions(t *testing.T) {
	apply := func(opts ...RunOption) runConfig {
		cfg := defaultRunConfig()
		for _, opt := range opts {
			opt(&cfg)
		}
		return cfg
	}

	assert.Equal(t, 7, apply(WithMaxIterations(7)).maxIterations)
	assert.Equal(t, 1000, apply(WithMaxIterations(0)).maxIterations, "non-positive values are ignored")
	assert.Equal(t, 1000, apply(WithMaxIterations(-3)).maxIterations)

	assert.Equal(t, "codecanvas", apply(WithGraphName("codecanvas")).graphName)
	assert.Equal(t, "flowgraph", apply(WithGraphName("")).graphName)

	logger := slog.Default()
	assert.Same(t, logger, apply(WithObservabilityLogger(logger)).logger)

	assert.IsType(t, observability.NoopMetrics{}, apply(WithMetrics(true), WithMetrics(false)).metrics)
	rec := &recordingMetrics{}
	assert.Same(t, rec, apply(WithMetricsRecorder(rec)).metrics)
	assert.Same(t, rec, apply(WithMetricsRecorder(rec), WithMetricsRecorder(nil)).metrics, "nil keeps the current recorder")

	traced := apply(WithTracing(true))
	assert.True(t, traced.tracingEnabled)
	assert.NotNil(t, traced.spans)
	assert.IsType(t, observability.NoopSpanManager{}, apply(WithTracing(true), WithTracing(false)).spans)
}
