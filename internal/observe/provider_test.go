package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// restoreGlobals puts the global providers back after InitProvider replaced
// them.
func restoreGlobals(t *testing.T) {
	t.Helper()
	mp, tp := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
	})
}

func TestInitProvider_ExportsMetricsAndSpans(t *testing.T) {
	restoreGlobals(t)

	reg := prometheus.NewRegistry()
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "test",
		Registerer:     reg,
		TraceExporter:  exp,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordChunk(context.Background(), 3200)

	_, span := StartSessionSpan(context.Background(), "s-1", "model")
	span.End()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	// Shutdown flushes the batcher.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if n := len(exp.GetSpans()); n != 1 {
		t.Errorf("exported %d spans, want 1", n)
	}

	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "livescribe_audio_chunks") {
			found = true
		}
	}
	if !found {
		t.Error("livescribe_audio_chunks not gathered from the registerer")
	}
}

func TestInitProvider_RejectsBadRatio(t *testing.T) {
	restoreGlobals(t)

	if _, err := InitProvider(context.Background(), ProviderConfig{SampleRatio: 1.5}); err == nil {
		t.Fatal("expected error for sample ratio > 1")
	}
}

func TestInitProvider_ParentBasedSampling(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		Registerer:  prometheus.NewRegistry(),
		SampleRatio: 1e-9,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	if !ok {
		t.Fatalf("global tracer provider is %T", otel.GetTracerProvider())
	}
	_, span := tp.Tracer("test").Start(context.Background(), "root")
	defer span.End()
	// A near-zero ratio drops new roots, but the span context still carries
	// a trace ID for correlation.
	if span.SpanContext().IsSampled() {
		t.Error("root span sampled at ratio 1e-9")
	}
	if !span.SpanContext().HasTraceID() {
		t.Error("unsampled span should still have a trace ID")
	}
}
