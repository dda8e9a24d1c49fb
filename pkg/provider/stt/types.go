package stt

// State is the lifecycle state of a [Client] connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// EventKind identifies the kind of an [Event].
type EventKind string

const (
	// EventConnected is emitted once the connection opens.
	EventConnected EventKind = "connected"

	// EventDisconnected is emitted exactly once per connection attempt, last.
	EventDisconnected EventKind = "disconnected"

	// EventStatus carries informational text, such as a notice about an
	// unrecognised frame.
	EventStatus EventKind = "status"

	// EventPartialTranscript carries an incremental transcript fragment.
	EventPartialTranscript EventKind = "partial_transcript"

	// EventFinalTranscript carries the authoritative transcript of a segment.
	EventFinalTranscript EventKind = "final_transcript"

	// EventError carries a server-reported or connection error message.
	EventError EventKind = "error"
)

// Event is a single item on a connection attempt's event stream.
type Event struct {
	Kind EventKind

	// Text is the transcript, status or error message. It is empty for
	// EventConnected and EventDisconnected.
	Text string
}

// SessionFlags tracks the commit bookkeeping of a live connection.
type SessionFlags struct {
	// HasUncommittedAudio is set when audio was sent since the last commit.
	HasUncommittedAudio bool

	// GenerationInProgress is set while the server is transcribing a
	// non-final commit.
	GenerationInProgress bool
}
