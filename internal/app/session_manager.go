package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/livescribe/internal/dictation"
	"github.com/MrWong99/livescribe/pkg/audio"
)

// SessionInfo holds metadata about an active dictation.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	StartedAt time.Time

	// Model is the transcription model in use.
	Model string

	// Sink is the name of the sink receiving text.
	Sink string
}

// Session bundles a ready-to-run orchestrator with the resources it owns.
type Session struct {
	Orchestrator *dictation.Orchestrator
	Info         SessionInfo

	// Closers run in reverse order once the session has finished.
	Closers []func() error
}

// SessionBuilder prepares a session reading from src.
type SessionBuilder func(ctx context.Context, src audio.Source) (*Session, error)

// run is one started session.
type run struct {
	info   SessionInfo
	cancel context.CancelFunc
	done   chan struct{}

	// res and err are written before done is closed.
	res *dictation.Result
	err error
}

// SessionManager manages the lifecycle of dictation sessions.
// Only one session can be active at a time (enforced by mutex).
// All exported methods are safe for concurrent use.
type SessionManager struct {
	build SessionBuilder

	mu      sync.Mutex
	current *run
	last    *run
}

// NewSessionManager creates a SessionManager that prepares sessions with
// build.
func NewSessionManager(build SessionBuilder) *SessionManager {
	return &SessionManager{build: build}
}

// Start begins a new dictation session reading from src and returns once it
// is running. Capture stops when ctx is cancelled or [SessionManager.Stop]
// is called; either way the session still finalizes.
//
// Returns [dictation.ErrSessionActive] if a session is already running.
func (sm *SessionManager) Start(ctx context.Context, src audio.Source) (SessionInfo, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current != nil {
		return SessionInfo{}, fmt.Errorf("%w (id=%s)", dictation.ErrSessionActive, sm.current.info.SessionID)
	}

	sess, err := sm.build(ctx, src)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("session: build: %w", err)
	}
	info := sess.Info
	info.SessionID = sess.Orchestrator.SessionID()
	info.StartedAt = time.Now().UTC()

	sessionCtx, cancel := context.WithCancel(ctx)
	r := &run{
		info:   info,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sm.current = r

	go sm.execute(sessionCtx, r, sess)

	slog.Info("session started",
		"session_id", info.SessionID,
		"model", info.Model,
		"sink", info.Sink,
	)
	return info, nil
}

func (sm *SessionManager) execute(ctx context.Context, r *run, sess *Session) {
	res, err := sess.Orchestrator.Run(ctx)
	r.cancel()

	for i := len(sess.Closers) - 1; i >= 0; i-- {
		if cerr := sess.Closers[i](); cerr != nil {
			slog.Warn("session: closer error", "session_id", r.info.SessionID, "index", i, "err", cerr)
		}
	}

	sm.mu.Lock()
	r.res, r.err = res, err
	if sm.current == r {
		sm.current = nil
	}
	sm.last = r
	sm.mu.Unlock()
	close(r.done)

	slog.Info("session stopped", "session_id", r.info.SessionID)
}

// Stop ends capture of the active session and waits until it has finalized
// or ctx is done. It returns the session result.
//
// Returns an error if no session is active.
func (sm *SessionManager) Stop(ctx context.Context) (*dictation.Result, error) {
	sm.mu.Lock()
	r := sm.current
	sm.mu.Unlock()

	if r == nil {
		return nil, fmt.Errorf("session: no active session to stop")
	}
	r.cancel()
	return r.wait(ctx)
}

// Wait blocks until the active session, or the most recent one if none is
// active, has finished. It returns the session result, or ctx's error if ctx
// is done first.
func (sm *SessionManager) Wait(ctx context.Context) (*dictation.Result, error) {
	sm.mu.Lock()
	r := sm.current
	if r == nil {
		r = sm.last
	}
	sm.mu.Unlock()

	if r == nil {
		return nil, fmt.Errorf("session: no session started")
	}
	return r.wait(ctx)
}

func (r *run) wait(ctx context.Context) (*dictation.Result, error) {
	select {
	case <-r.done:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IsActive reports whether a session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current != nil
}

// Info returns metadata about the active session.
// Returns zero value if no session is active.
func (sm *SessionManager) Info() SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return SessionInfo{}
	}
	return sm.current.info
}

// closeIfCloser returns a closer for v when it implements io.Closer.
func closeIfCloser(v any) (func() error, bool) {
	c, ok := v.(io.Closer)
	if !ok {
		return nil, false
	}
	return c.Close, true
}
