// Package tracing provides the tool.Tracer implementations used by the
// executor to emit one span per tool invocation. The OpenTelemetry tracer
// links spans into the caller's distributed trace when the tool context
// carries hex-encoded trace and parent span IDs.
package tracing

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Noop records nothing. The span ID is empty and the finish function only
// observes the error.
type Noop struct{}

// Span implements tool.Tracer.
func (Noop) Span(ctx context.Context, name string, attrs map[string]any) (context.Context, string, func(error)) {
	return ctx, "", func(error) {}
}

// OTel emits spans through an OpenTelemetry tracer.
type OTel struct {
	tracer trace.Tracer
}

// NewOTel builds a tracer on the given OpenTelemetry tracer.
func NewOTel(tracer trace.Tracer) *OTel {
	return &OTel{tracer: tracer}
}

// Span implements tool.Tracer. The returned finish function records the
// error and status on the span and ends it.
func (t *OTel) Span(ctx context.Context, name string, attrs map[string]any) (context.Context, string, func(error)) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(spanAttrs(attrs)...))

	spanID := ""
	if sc := span.SpanContext(); sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}

	finish := func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
	return ctx, spanID, finish
}

// WithRemoteParent injects a remote parent span context built from
// hex-encoded trace and span IDs. The original context is returned unchanged
// when either ID is empty or malformed.
func WithRemoteParent(ctx context.Context, traceID, parentSpanID string) context.Context {
	if traceID == "" || parentSpanID == "" {
		return ctx
	}

	traceIDBytes, err := hex.DecodeString(traceID)
	if err != nil || len(traceIDBytes) != 16 {
		return ctx
	}
	spanIDBytes, err := hex.DecodeString(parentSpanID)
	if err != nil || len(spanIDBytes) != 8 {
		return ctx
	}

	var tid trace.TraceID
	copy(tid[:], traceIDBytes)
	var sid trace.SpanID
	copy(sid[:], spanIDBytes)

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithSpanContext(ctx, parent)
}

func spanAttrs(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch value := v.(type) {
		case string:
			out = append(out, attribute.String(k, value))
		case bool:
			out = append(out, attribute.Bool(k, value))
		case int:
			out = append(out, attribute.Int(k, value))
		case int64:
			out = append(out, attribute.Int64(k, value))
		case float64:
			out = append(out, attribute.Float64(k, value))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", value)))
		}
	}
	return out
}
