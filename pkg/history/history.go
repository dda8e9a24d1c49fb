// Package history stores finished dictation sessions.
//
// Every session the orchestrator completes is written once as an [Entry].
// The CLI reads them back through [Store.Recent]. Two backends exist: the
// in-process [MemStore] and the PostgreSQL store in the postgres subpackage.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Get] when no entry has the given ID.
var ErrNotFound = errors.New("history: entry not found")

// Entry is one finished dictation session.
type Entry struct {
	// SessionID uniquely identifies the session. Saving an entry with an ID
	// that already exists replaces the earlier entry.
	SessionID string

	StartedAt time.Time
	EndedAt   time.Time

	// Model is the transcription model the session used. May be empty.
	Model string

	// Text is the full inserted text of the session after vocabulary
	// correction.
	Text string
}

// Duration returns how long the session lasted.
func (e Entry) Duration() time.Duration {
	if e.EndedAt.Before(e.StartedAt) {
		return 0
	}
	return e.EndedAt.Sub(e.StartedAt)
}

// Store persists dictation history. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save writes e, replacing any entry with the same SessionID.
	Save(ctx context.Context, e Entry) error

	// Recent returns up to limit entries ordered newest first (by StartedAt).
	// A limit <= 0 returns every entry.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Get returns the entry for sessionID or [ErrNotFound].
	Get(ctx context.Context, sessionID string) (Entry, error)

	// Ping reports whether the backend is reachable. Used by readiness probes.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
