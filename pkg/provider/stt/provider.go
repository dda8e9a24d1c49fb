// Package stt defines the Client interface for streaming speech-to-text
// backends that speak a realtime, event-based WebSocket protocol.
//
// A Client owns at most one live connection. Each call to Connect starts a
// new connection attempt and returns that attempt's event stream: an ordered
// sequence of [Event] values that always ends with exactly one
// [EventDisconnected] before the channel is closed. Audio is pushed with
// SendAudioChunk and segmented with SendCommit; transcripts flow back as
// partial and final events on the stream.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"
)

// Config describes where and how to open a transcription session.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the realtime transcription API.
	Endpoint string

	// APIKey authenticates the connection. It is sent as a bearer token.
	// Empty means no authentication header.
	APIKey string

	// Model selects the transcription model. When non-empty it is announced
	// in a session.update frame as soon as the connection opens.
	Model string

	// TranscriptionDelay asks the server to hold back partials for this long
	// in exchange for fewer revisions. Zero leaves the server default.
	TranscriptionDelay time.Duration
}

// Client is the abstraction over a realtime transcription connection.
//
// Frames sent while a connection attempt is still opening are queued and
// flushed in order once it opens; frames sent while disconnected are
// dropped.
type Client interface {
	// Connect tears down any previous connection and starts a new attempt.
	// It returns as soon as the attempt is started; progress is reported on
	// the returned channel, which is closed after the attempt's
	// EventDisconnected has been delivered.
	//
	// Returns an error without starting an attempt when cfg is invalid.
	// Callers must drain the returned channel until it is closed.
	Connect(ctx context.Context, cfg Config) (<-chan Event, error)

	// Disconnect closes the current connection, if any. It emits
	// EventDisconnected but never EventError. Calling it while disconnected
	// is a no-op.
	Disconnect()

	// SendAudioChunk streams one chunk of raw PCM audio. Empty chunks are
	// ignored.
	SendAudioChunk(chunk []byte)

	// SendCommit asks the server to transcribe the audio sent so far. A
	// non-final commit is debounced while a transcription is in progress; a
	// final commit ends the segment. It reports whether a commit frame was
	// actually sent.
	SendCommit(final bool) bool

	// State returns the current connection state.
	State() State
}
