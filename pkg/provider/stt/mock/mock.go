// Package mock provides a test double for the stt.Client interface.
//
// Connect hands out the channels in Streams in order, so a test can script
// every connection attempt up front:
//
//	events := make(chan stt.Event, 8)
//	events <- stt.Event{Kind: stt.EventConnected}
//	c := &mock.Client{Streams: []chan stt.Event{events}}
//
// Callers own the scripted channels and are responsible for closing them.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/livescribe/pkg/provider/stt"
)

// Client is a mock implementation of stt.Client.
type Client struct {
	mu sync.Mutex

	// Streams are returned by successive Connect calls. Once exhausted,
	// Connect returns a new open channel that never receives events.
	Streams []chan stt.Event

	// ConnectErr, if non-nil, is returned by every Connect call.
	ConnectErr error

	// CommitResult decides the return value of SendCommit. When nil,
	// SendCommit reports true.
	CommitResult func(final bool) bool

	// --- Call records ---

	// ConnectCalls records the config of every Connect call.
	ConnectCalls []stt.Config

	// Chunks records a copy of every audio chunk in order.
	Chunks [][]byte

	// Commits records the final flag of every SendCommit call.
	Commits []bool

	// DisconnectCalls is the number of times Disconnect was called.
	DisconnectCalls int

	state stt.State
}

// Connect records the call and returns the next scripted stream.
func (c *Client) Connect(_ context.Context, cfg stt.Config) (<-chan stt.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConnectCalls = append(c.ConnectCalls, cfg)
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	c.state = stt.StateConnected
	if len(c.Streams) == 0 {
		return make(chan stt.Event), nil
	}
	ch := c.Streams[0]
	c.Streams = c.Streams[1:]
	return ch, nil
}

// Disconnect records the call.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DisconnectCalls++
	c.state = stt.StateDisconnected
}

// SendAudioChunk records a copy of chunk.
func (c *Client) SendAudioChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	c.Chunks = append(c.Chunks, cp)
}

// SendCommit records the call and returns CommitResult(final), or true.
func (c *Client) SendCommit(final bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Commits = append(c.Commits, final)
	if c.CommitResult == nil {
		return true
	}
	return c.CommitResult(final)
}

// State returns connected after a successful Connect and disconnected after
// Disconnect.
func (c *Client) State() stt.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == "" {
		return stt.StateDisconnected
	}
	return c.state
}

// ChunkCount returns the number of recorded audio chunks. Thread-safe.
func (c *Client) ChunkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Chunks)
}

// CommitCalls returns a copy of the recorded commit flags. Thread-safe.
func (c *Client) CommitCalls() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.Commits...)
}

// DisconnectCount returns the number of Disconnect calls. Thread-safe.
func (c *Client) DisconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.DisconnectCalls
}

// Ensure Client implements stt.Client at compile time.
var _ stt.Client = (*Client)(nil)
