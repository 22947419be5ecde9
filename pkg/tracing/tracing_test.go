package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// withRecorder swaps the package tracer for one backed by an in-memory recorder.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer(TracerName)
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestInitTracingNoEndpoint(t *testing.T) {
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, Config{}, "test-version")
	require.NoError(t, err)
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "noop")
	require.NotNil(t, span)
	assert.False(t, span.IsRecording())

	// helpers must tolerate non-recording spans
	SetAttributes(ctx, attribute.String("k", "v"))
	AddEvent(ctx, "event")
	RecordError(ctx, errors.New("ignored"))
	span.End()
}

func TestSpanHelpersRecord(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "metrics.calculate",
		trace.WithAttributes(attribute.String("test.key", "test-value")))
	SetAttributes(ctx, MetricsAttributes("driving", 10, "D")...)
	AddEvent(ctx, "cache_miss")
	RecordError(ctx, errors.New("provider down"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	got := ended[0]

	assert.Equal(t, "metrics.calculate", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range got.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "driving", attrs[AttrTransportMode].AsString())
	assert.Equal(t, "D", attrs[AttrRating].AsString())
	assert.InDelta(t, 10.0, attrs[AttrDistanceKm].AsFloat64(), 1e-9)

	var names []string
	for _, ev := range got.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "cache_miss")
}

func TestAttributeHelpers(t *testing.T) {
	assert.Len(t, MCPToolAttributes("route_metrics", StatusSuccess, 12), 3)
	assert.Len(t, CacheAttributes(ServiceGeocoding, true), 2)
	assert.Len(t, MetricsAttributes("walking", 1.6, "A"), 3)
}
