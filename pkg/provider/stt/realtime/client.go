// Package realtime implements stt.Client over a realtime transcription
// WebSocket API: JSON frames announce the session, stream base64 PCM audio,
// and commit it for transcription, while the server answers with delta and
// done events.
//
// The client tracks one connection attempt at a time. Every callback from a
// dial, read, write or keepalive goroutine carries the attempt it belongs to
// and is ignored once that attempt is no longer current, so a late failure
// from a superseded connection can never tear down its successor.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/livescribe/pkg/provider/stt"
	"github.com/coder/websocket"
)

const (
	defaultDialTimeout       = 15 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultKeepaliveInterval = 15 * time.Second
)

var (
	// ErrEmptyEndpoint is returned by Connect when no endpoint is configured.
	ErrEmptyEndpoint = errors.New("realtime: endpoint must not be empty")

	// ErrUnsupportedScheme is returned by Connect for endpoints whose scheme
	// is not ws or wss.
	ErrUnsupportedScheme = errors.New("realtime: unsupported endpoint scheme")
)

// ── Options ─────────────────────────────────────────────────────────────────

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithDialer replaces the WebSocket dialer. Tests use it to inject a fake
// Transport.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dial = d
	}
}

// WithKeepaliveInterval sets the interval between keepalive pings. Zero or
// negative disables keepalive.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(c *Client) {
		c.keepalive = d
	}
}

// WithWriteTimeout bounds every frame write and ping.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithDialTimeout bounds the WebSocket handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// ── Client ──────────────────────────────────────────────────────────────────

// attempt is the identity of one connection attempt.
type attempt struct {
	id     uint64
	cfg    stt.Config
	ctx    context.Context
	cancel context.CancelFunc
	events *stream

	// transport is set once when the attempt opens, under Client.mu.
	transport Transport

	// writeMu serialises frames on transport.
	writeMu sync.Mutex
}

// Client implements stt.Client. The zero value is not usable; call New.
type Client struct {
	dial         Dialer
	dialTimeout  time.Duration
	writeTimeout time.Duration
	keepalive    time.Duration
	log          *slog.Logger

	mu            sync.Mutex
	state         stt.State
	current       *attempt
	pending       [][]byte
	flags         stt.SessionFlags
	userInitiated bool
	nextID        uint64
}

// New creates a disconnected Client.
func New(opts ...Option) *Client {
	c := &Client{
		dial:         DialWebSocket,
		dialTimeout:  defaultDialTimeout,
		writeTimeout: defaultWriteTimeout,
		keepalive:    defaultKeepaliveInterval,
		log:          slog.Default(),
		state:        stt.StateDisconnected,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect implements stt.Client. The endpoint must use the ws or wss scheme.
// The connection outlives ctx's cancellation; end it with Disconnect.
func (c *Client) Connect(ctx context.Context, cfg stt.Config) (<-chan stt.Event, error) {
	endpoint, err := validateEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	c.mu.Lock()
	if prev := c.current; prev != nil && c.state != stt.StateDisconnected {
		c.log.Debug("realtime: replacing live connection", "attempt", prev.id)
		c.teardownLocked(prev)
		prev.events.push(stt.Event{Kind: stt.EventDisconnected})
		prev.events.finish()
	}
	c.nextID++
	att := &attempt{id: c.nextID, cfg: cfg, events: newStream()}
	att.ctx, att.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.current = att
	c.state = stt.StateConnecting
	c.pending = nil
	c.flags = stt.SessionFlags{}
	c.userInitiated = false
	c.mu.Unlock()

	c.log.Info("realtime: connecting", "endpoint", endpoint, "attempt", att.id, "model", cfg.Model)
	go c.open(att, endpoint, header)
	return att.events.out, nil
}

func validateEndpoint(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyEndpoint
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("realtime: parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("realtime: endpoint %q has no host", raw)
	}
	return u.String(), nil
}

func (c *Client) open(att *attempt, endpoint string, header http.Header) {
	ctx, cancel := context.WithTimeout(att.ctx, c.dialTimeout)
	tr, err := c.dial(ctx, endpoint, header)
	cancel()
	if err != nil {
		c.handleTerminal(att, fmt.Errorf("dial: %w", err))
		return
	}
	c.handleOpen(att, tr)
}

// handleOpen promotes att to connected, sends the session configuration and
// flushes frames queued while connecting, then runs the receive loop.
func (c *Client) handleOpen(att *attempt, tr Transport) {
	c.mu.Lock()
	if c.current != att || c.state != stt.StateConnecting {
		c.mu.Unlock()
		_ = tr.Close(websocket.StatusGoingAway, "superseded")
		return
	}
	att.transport = tr
	c.state = stt.StateConnected
	queued := c.pending
	c.pending = nil
	att.events.push(stt.Event{Kind: stt.EventConnected})
	// Hold the write lock across the flush so frames sent from now on line
	// up behind the queued ones.
	att.writeMu.Lock()
	c.mu.Unlock()

	c.log.Info("realtime: connected", "attempt", att.id, "queued_frames", len(queued))

	if c.keepalive > 0 {
		go c.keepaliveLoop(att)
	}

	err := c.flush(att, queued)
	att.writeMu.Unlock()
	if err != nil {
		c.handleTerminal(att, fmt.Errorf("send: %w", err))
		return
	}
	c.receiveLoop(att)
}

func (c *Client) flush(att *attempt, queued [][]byte) error {
	if frame := sessionUpdate(att.cfg); frame != nil {
		if err := c.write(att, frame); err != nil {
			return err
		}
	}
	for _, frame := range queued {
		if err := c.write(att, frame); err != nil {
			return err
		}
	}
	return nil
}

// write sends one text frame. The caller holds att.writeMu.
func (c *Client) write(att *attempt, data []byte) error {
	ctx, cancel := context.WithTimeout(att.ctx, c.writeTimeout)
	defer cancel()
	return att.transport.Write(ctx, websocket.MessageText, data)
}

// send serialises frame and delivers it according to the connection state:
// queued while connecting, written while connected, dropped otherwise.
func (c *Client) send(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("realtime: encode frame", "err", err)
		return
	}

	c.mu.Lock()
	switch c.state {
	case stt.StateConnecting:
		c.pending = append(c.pending, data)
		c.mu.Unlock()
		return
	case stt.StateDisconnected:
		c.mu.Unlock()
		return
	}
	att := c.current
	c.mu.Unlock()

	att.writeMu.Lock()
	err = c.write(att, data)
	att.writeMu.Unlock()
	if err != nil {
		c.handleTerminal(att, fmt.Errorf("send: %w", err))
	}
}

// SendAudioChunk implements stt.Client.
func (c *Client) SendAudioChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.mu.Lock()
	if c.state == stt.StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.flags.HasUncommittedAudio = true
	c.mu.Unlock()

	c.send(audioAppendFrame{
		Type:  typeAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(chunk),
	})
}

// SendCommit implements stt.Client.
//
// A non-final commit is sent only when audio arrived since the last commit
// and no transcription is in progress; it then marks a transcription as in
// progress. A final commit is sent when there is uncommitted audio or a
// transcription in progress, and always clears both flags.
func (c *Client) SendCommit(final bool) bool {
	c.mu.Lock()
	var signal bool
	if final {
		signal = c.flags.HasUncommittedAudio || c.flags.GenerationInProgress
		c.flags = stt.SessionFlags{}
	} else {
		signal = c.flags.HasUncommittedAudio && !c.flags.GenerationInProgress
		if signal {
			c.flags.HasUncommittedAudio = false
			c.flags.GenerationInProgress = true
		}
	}
	c.mu.Unlock()

	if !signal {
		return false
	}
	c.send(audioCommitFrame{Type: typeAudioCommit, Final: final})
	return true
}

// receiveLoop reads frames until the transport fails or att is torn down.
func (c *Client) receiveLoop(att *attempt) {
	for {
		typ, data, err := att.transport.Read(att.ctx)
		if err != nil {
			c.handleTerminal(att, fmt.Errorf("receive: %w", err))
			return
		}
		c.handleFrame(att, typ, data)
	}
}

func (c *Client) handleFrame(att *attempt, typ websocket.MessageType, data []byte) {
	if typ == websocket.MessageBinary && !utf8.Valid(data) {
		c.emit(att, stt.Event{
			Kind: stt.EventStatus,
			Text: fmt.Sprintf("unrecognized binary frame (%d bytes)", len(data)),
		}, false)
		return
	}

	ev, err := decodeServerEvent(data)
	if err != nil {
		c.log.Debug("realtime: ignoring malformed frame", "attempt", att.id, "err", err)
		return
	}
	if !ev.known {
		c.log.Debug("realtime: ignoring event", "attempt", att.id, "type", ev.typ)
		return
	}
	if ev.event.Kind == stt.EventError {
		c.log.Warn("realtime: server error", "attempt", att.id, "message", ev.event.Text)
	}
	c.emit(att, ev.event, ev.endsGeneration)
}

// emit delivers e on att's stream if att is still the live connection.
func (c *Client) emit(att *attempt, e stt.Event, endsGeneration bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != att || c.state != stt.StateConnected {
		return
	}
	if endsGeneration {
		c.flags.GenerationInProgress = false
	}
	att.events.push(e)
}

func (c *Client) keepaliveLoop(att *attempt) {
	t := time.NewTicker(c.keepalive)
	defer t.Stop()
	for {
		select {
		case <-att.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(att.ctx, c.writeTimeout)
			err := att.transport.Ping(ctx)
			cancel()
			if err != nil {
				c.handleTerminal(att, fmt.Errorf("keepalive: %w", err))
				return
			}
		}
	}
}

// handleTerminal tears att down after a dial, read, write or keepalive
// failure. It is a no-op unless att is the live attempt, so however many
// goroutines report the same failure, the stream carries a single
// error/disconnected pair.
func (c *Client) handleTerminal(att *attempt, cause error) {
	c.mu.Lock()
	if c.state == stt.StateDisconnected || c.current != att {
		c.mu.Unlock()
		return
	}
	quiet := c.userInitiated || isNormalClosure(cause)
	c.teardownLocked(att)
	if !quiet {
		att.events.push(stt.Event{Kind: stt.EventError, Text: "connection lost: " + cause.Error()})
	}
	att.events.push(stt.Event{Kind: stt.EventDisconnected})
	att.events.finish()
	c.mu.Unlock()

	if quiet {
		c.log.Info("realtime: connection closed", "attempt", att.id)
	} else {
		c.log.Warn("realtime: connection lost", "attempt", att.id, "err", cause)
	}
}

// Disconnect implements stt.Client.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == stt.StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.userInitiated = true
	att := c.current
	c.teardownLocked(att)
	att.events.push(stt.Event{Kind: stt.EventDisconnected})
	att.events.finish()
	c.mu.Unlock()

	c.log.Info("realtime: disconnected", "attempt", att.id)
}

// teardownLocked releases att's resources and resets the client to
// disconnected. The caller holds c.mu and emits the events.
func (c *Client) teardownLocked(att *attempt) {
	if tr := att.transport; tr != nil {
		go func() { _ = tr.Close(websocket.StatusNormalClosure, "client disconnect") }()
	}
	att.cancel()
	c.current = nil
	c.pending = nil
	c.flags = stt.SessionFlags{}
	c.state = stt.StateDisconnected
}

// State implements stt.Client.
func (c *Client) State() stt.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Flags returns a snapshot of the commit bookkeeping.
func (c *Client) Flags() stt.SessionFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// isNormalClosure reports whether err is a clean close by the server.
func isNormalClosure(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

var _ stt.Client = (*Client)(nil)
