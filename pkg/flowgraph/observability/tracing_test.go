package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attributeKey(k string) attribute.Key { return attribute.Key(k) }

// setupTracingTest installs a tracer provider with an in-memory exporter.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func spanAttr(s tracetest.SpanStub, key string) string {
	for _, kv := range s.Attributes {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestStartRunSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartRunSpan(context.Background(), "codecanvas", "run-123")
	require.NotNil(t, span)
	assert.True(t, span.IsRecording())
	assert.NotEqual(t, context.Background(), ctx)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "flowgraph.run", spans[0].Name)
	assert.Equal(t, "codecanvas", spanAttr(spans[0], "graph.name"))
	assert.Equal(t, "run-123", spanAttr(spans[0], "run.id"))
}

func TestStartNodeSpan_IsChildOfRunSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	runCtx, runSpan := sm.StartRunSpan(context.Background(), "g", "r")
	_, nodeSpan := sm.StartNodeSpan(runCtx, "classify")
	nodeSpan.End()
	runSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	node, run := spans[0], spans[1]
	assert.Equal(t, "flowgraph.node.classify", node.Name)
	assert.Equal(t, "classify", spanAttr(node, "node.id"))
	assert.Equal(t, run.SpanContext.SpanID(), node.Parent.SpanID())
	assert.Equal(t, run.SpanContext.TraceID(), node.SpanContext.TraceID())
}

func TestEndSpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, failed := sm.StartNodeSpan(context.Background(), "fail")
	sm.EndSpanWithError(failed, errors.New("upstream 503"))

	_, ok := sm.StartNodeSpan(context.Background(), "ok")
	sm.EndSpanWithError(ok, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "upstream 503", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
}

func TestAddSpanEvent(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartNodeSpan(context.Background(), "generate_code")
	sm.AddSpanEvent(ctx, "retry.scheduled", attribute.Int("attempt", 1))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "retry.scheduled", spans[0].Events[0].Name)

	// No recording span in ctx: silently ignored.
	assert.NotPanics(t, func() { AddSpanEvent(context.Background(), "ignored") })
}
