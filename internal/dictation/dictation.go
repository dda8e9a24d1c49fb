// Package dictation runs a dictation session: it streams audio from a
// [audio.Source] to a realtime [stt.Client], stabilizes the transcripts the
// client reports, and inserts text into a [sink.Inserter] once it can no
// longer change.
//
// An [Orchestrator] runs two goroutines. The audio pump reads chunks, sends
// them and issues periodic non-final commits. The consumer owns the
// [stabilizer.Stabilizer]: it folds partial and final transcripts into
// committed text, drives the live overlay, inserts newly stable text, and
// reconnects when the connection drops mid-capture. When the source ends or
// the run context is cancelled, the consumer sends a final commit, waits a
// bounded time for the last transcript, inserts whatever is still pending
// and records the session in history.
package dictation

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrWong99/livescribe/internal/observe"
	"github.com/MrWong99/livescribe/internal/transcript"
	"github.com/MrWong99/livescribe/pkg/audio"
	"github.com/MrWong99/livescribe/pkg/history"
	"github.com/MrWong99/livescribe/pkg/provider/stt"
	"github.com/MrWong99/livescribe/pkg/sink"
)

var (
	// ErrConnectionLost is returned by Run when the transcription
	// connection dropped during capture and could not be re-established.
	ErrConnectionLost = errors.New("dictation: connection lost")

	// ErrSessionActive is returned when a session is started while another
	// one is still running.
	ErrSessionActive = errors.New("dictation: a session is already active")

	// errStopped ends a reconnect wait because capture stopped.
	errStopped = errors.New("dictation: stopped")
)

// Mode selects when stable text is inserted.
type Mode string

const (
	// ModeIncremental inserts each newly stable piece as soon as it is
	// committed.
	ModeIncremental Mode = "incremental"

	// ModeOnStop inserts the whole session text once, after the final
	// transcript.
	ModeOnStop Mode = "on_stop"
)

// Default timings.
const (
	DefaultFinalizeTimeout = 2 * time.Second
	DefaultFinalSettle     = 250 * time.Millisecond
)

// Config wires an [Orchestrator] to its collaborators.
type Config struct {
	// Client is the transcription connection. Required.
	Client stt.Client

	// Connection is passed to Client.Connect for every attempt.
	Connection stt.Config

	// Source provides PCM16 mono 16 kHz audio. Required.
	Source audio.Source

	// Inserter receives stable text. Required.
	Inserter sink.Inserter

	// SinkName labels insert metrics. Defaults to "sink".
	SinkName string

	// Overlay, if set, is updated with committed and unstable text after
	// every transcript.
	Overlay sink.Overlay

	// Corrector, if set, rewrites text against the custom vocabulary right
	// before it is inserted.
	Corrector transcript.Pipeline

	// History, if set, stores the finished session.
	History history.Store

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	Mode Mode

	// CommitInterval is the minimum time between non-final commits while
	// audio flows. Zero disables non-final commits.
	CommitInterval time.Duration

	// FinalizeTimeout bounds the wait for the final transcript after
	// capture ends. Defaults to [DefaultFinalizeTimeout].
	FinalizeTimeout time.Duration

	// FinalSettle is how long to keep listening after a final transcript
	// during finalization, in case a later final follows. Defaults to
	// [DefaultFinalSettle].
	FinalSettle time.Duration

	Reconnect ReconnectPolicy

	// SessionID identifies the session in logs, traces and history.
	// A random UUID is generated when empty.
	SessionID string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result summarises a finished session.
type Result struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time

	// Text is everything handed to the inserter, after vocabulary
	// correction. It includes text whose insertion failed.
	Text string

	// RawText is the committed transcript before correction.
	RawText string

	// Corrections lists every vocabulary substitution in insertion order.
	Corrections []transcript.Correction

	// InsertFailures counts insert calls that returned an error.
	InsertFailures int

	// Reconnects counts reconnect attempts.
	Reconnects int
}

// Duration returns the session length.
func (r *Result) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
