package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTracer(t *testing.T) (*OTel, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return NewOTel(provider.Tracer("test")), recorder
}

func TestNoopSpan(t *testing.T) {
	ctx := context.Background()
	got, spanID, finish := Noop{}.Span(ctx, "tool.execute", nil)
	assert.Equal(t, ctx, got)
	assert.Empty(t, spanID)
	finish(nil)
	finish(errors.New("double finish is harmless"))
}

func TestOTelSpanRecordsSuccess(t *testing.T) {
	tracer, recorder := setupTracer(t)

	_, spanID, finish := tracer.Span(context.Background(), "tool.execute",
		map[string]any{"tool": "scan", "attempt": 1})
	assert.NotEmpty(t, spanID)
	finish(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tool.execute", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, spanID, spans[0].SpanContext().SpanID().String())
}

func TestOTelSpanRecordsError(t *testing.T) {
	tracer, recorder := setupTracer(t)

	_, _, finish := tracer.Span(context.Background(), "tool.execute", nil)
	finish(errors.New("backend down"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "backend down", spans[0].Status().Description)
}

func TestWithRemoteParent(t *testing.T) {
	traceID := "0123456789abcdef0123456789abcdef"
	spanID := "0123456789abcdef"

	ctx := WithRemoteParent(context.Background(), traceID, spanID)
	sc := trace.SpanContextFromContext(ctx)
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsRemote())
	assert.Equal(t, traceID, sc.TraceID().String())
	assert.Equal(t, spanID, sc.SpanID().String())
}

func TestWithRemoteParentRejectsMalformedIDs(t *testing.T) {
	base := context.Background()

	tests := []struct {
		name          string
		traceID, span string
	}{
		{"empty trace", "", "0123456789abcdef"},
		{"empty span", "0123456789abcdef0123456789abcdef", ""},
		{"short trace", "abcd", "0123456789abcdef"},
		{"not hex", "zz23456789abcdef0123456789abcdef", "0123456789abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithRemoteParent(base, tt.traceID, tt.span)
			assert.Equal(t, base, ctx)
		})
	}
}

func TestChildSpanJoinsRemoteTrace(t *testing.T) {
	tracer, recorder := setupTracer(t)

	traceID := "0123456789abcdef0123456789abcdef"
	ctx := WithRemoteParent(context.Background(), traceID, "0123456789abcdef")

	_, _, finish := tracer.Span(ctx, "tool.execute", nil)
	finish(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, traceID, spans[0].SpanContext().TraceID().String())
}
