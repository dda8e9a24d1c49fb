package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/livescribe"

// Span attribute keys.
const (
	AttrSessionID = attribute.Key("livescribe.session_id")
	AttrModel     = attribute.Key("livescribe.model")
	AttrSink      = attribute.Key("livescribe.sink")
	AttrTextBytes = attribute.Key("livescribe.text_bytes")
)

// Tracer returns the livescribe tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSessionSpan starts the root span of a dictation session.
func StartSessionSpan(ctx context.Context, sessionID, model string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dictation.session",
		trace.WithAttributes(AttrSessionID.String(sessionID), AttrModel.String(model)),
	)
}

// StartInsertSpan starts a child span around one text insertion.
func StartInsertSpan(ctx context.Context, sink string, textBytes int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dictation.insert",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrSink.String(sink), AttrTextBytes.Int(textBytes)),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID is the trace ID carried by ctx, or "" without a valid span.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns slog.Default with trace context from ctx attached.
func Logger(ctx context.Context) *slog.Logger {
	return WithTrace(ctx, slog.Default())
}

// WithTrace adds trace_id and span_id to l when ctx carries a span. l is
// returned unchanged otherwise.
func WithTrace(ctx context.Context, l *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
