// Package observe provides application-wide observability primitives for
// livescribe: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware for the admin server.
//
// Metrics are recorded through the OpenTelemetry Metrics API and bridged to
// Prometheus by [InitProvider]. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all livescribe metrics.
const meterName = "github.com/MrWong99/livescribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Audio ---

	// AudioChunks counts PCM chunks handed to the transcription client.
	AudioChunks metric.Int64Counter

	// AudioBytes counts PCM bytes handed to the transcription client.
	AudioBytes metric.Int64Counter

	// --- Protocol ---

	// Commits counts commit requests that reached the wire. Attribute:
	//   attribute.Bool("final", ...)
	Commits metric.Int64Counter

	// TranscriptEvents counts events received from the client stream.
	// Attribute: attribute.String("kind", ...)
	TranscriptEvents metric.Int64Counter

	// ConnectionErrors counts terminal connection errors.
	ConnectionErrors metric.Int64Counter

	// Reconnects counts reconnect attempts. Attribute:
	//   attribute.String("outcome", "ok"|"error")
	Reconnects metric.Int64Counter

	// --- Insertion ---

	// InsertDuration tracks how long a sink takes to insert text. Attribute:
	//   attribute.String("sink", ...)
	InsertDuration metric.Float64Histogram

	// InsertFailures counts failed insertions. Attribute:
	//   attribute.String("sink", ...)
	InsertFailures metric.Int64Counter

	// Corrections counts vocabulary corrections applied to inserted text.
	// Attribute: attribute.String("method", ...)
	Corrections metric.Int64Counter

	// --- Sessions ---

	// SessionDuration tracks dictation session length. Attribute:
	//   attribute.String("outcome", ...)
	SessionDuration metric.Float64Histogram

	// ActiveSessions tracks the number of running dictation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin request latency. Attributes:
	//   attribute.String("route", ...), attribute.String("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// insertBuckets are histogram boundaries (seconds) for sink latencies.
var insertBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// sessionBuckets are histogram boundaries (seconds) for dictation lengths.
var sessionBuckets = []float64{
	1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.AudioChunks, err = m.Int64Counter("livescribe.audio.chunks",
		metric.WithDescription("Total PCM chunks sent to the transcription backend."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Counter("livescribe.audio.bytes",
		metric.WithDescription("Total PCM bytes sent to the transcription backend."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("livescribe.commits",
		metric.WithDescription("Total commit requests sent, by finality."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEvents, err = m.Int64Counter("livescribe.transcript.events",
		metric.WithDescription("Total transcription client events by kind."),
	); err != nil {
		return nil, err
	}
	if met.ConnectionErrors, err = m.Int64Counter("livescribe.connection.errors",
		metric.WithDescription("Total terminal connection errors."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("livescribe.reconnects",
		metric.WithDescription("Total reconnect attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.InsertFailures, err = m.Int64Counter("livescribe.insert.failures",
		metric.WithDescription("Total failed text insertions by sink."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("livescribe.vocabulary.corrections",
		metric.WithDescription("Total vocabulary corrections applied by method."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.InsertDuration, err = m.Float64Histogram("livescribe.insert.duration",
		metric.WithDescription("Latency of text insertion by sink."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(insertBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("livescribe.session.duration",
		metric.WithDescription("Length of dictation sessions by outcome."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("livescribe.active_sessions",
		metric.WithDescription("Number of running dictation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("livescribe.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordChunk records one audio chunk of n bytes.
func (m *Metrics) RecordChunk(ctx context.Context, n int) {
	m.AudioChunks.Add(ctx, 1)
	m.AudioBytes.Add(ctx, int64(n))
}

// RecordCommit records a commit request that was written or queued.
func (m *Metrics) RecordCommit(ctx context.Context, final bool) {
	m.Commits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
}

// RecordTranscriptEvent records one event from the client stream.
func (m *Metrics) RecordTranscriptEvent(ctx context.Context, kind string) {
	m.TranscriptEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordConnectionError records a terminal connection error.
func (m *Metrics) RecordConnectionError(ctx context.Context) {
	m.ConnectionErrors.Add(ctx, 1)
}

// RecordReconnect records a reconnect attempt and whether it succeeded.
func (m *Metrics) RecordReconnect(ctx context.Context, err error) {
	m.Reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

// RecordInsert records an insertion into sinkName that took d.
func (m *Metrics) RecordInsert(ctx context.Context, sinkName string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("sink", sinkName))
	m.InsertDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.InsertFailures.Add(ctx, 1, attrs)
	}
}

// RecordCorrection records one vocabulary correction made by method.
func (m *Metrics) RecordCorrection(ctx context.Context, method string) {
	m.Corrections.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded decrements the active session gauge and records the session
// length.
func (m *Metrics) SessionEnded(ctx context.Context, d time.Duration, err error) {
	m.ActiveSessions.Add(ctx, -1)
	m.SessionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
