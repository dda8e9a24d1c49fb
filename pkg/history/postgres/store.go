// Package postgres provides a PostgreSQL-backed [history.Store].
//
// Sessions are kept in a single dictation_sessions table that [Migrate]
// creates on startup. A GIN index over the text column backs [Store.Search].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Save(ctx, entry)
//	recent, _ := store.Recent(ctx, 20)
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/livescribe/pkg/history"
)

var _ history.Store = (*Store)(nil)

// Store is a [history.Store] backed by a [pgxpool.Pool].
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres history: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres history: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres history: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Save implements [history.Store]. An existing row with the same session ID
// is overwritten.
func (s *Store) Save(ctx context.Context, e history.Entry) error {
	if e.SessionID == "" {
		return errors.New("postgres history: save: empty session id")
	}

	const q = `
		INSERT INTO dictation_sessions (session_id, started_at, ended_at, model, text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		    SET started_at = EXCLUDED.started_at,
		        ended_at   = EXCLUDED.ended_at,
		        model      = EXCLUDED.model,
		        text       = EXCLUDED.text`

	if _, err := s.pool.Exec(ctx, q, e.SessionID, e.StartedAt, e.EndedAt, e.Model, e.Text); err != nil {
		return fmt.Errorf("postgres history: save: %w", err)
	}
	return nil
}

// Recent implements [history.Store].
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	q := `
		SELECT session_id, started_at, ended_at, model, text
		FROM   dictation_sessions
		ORDER  BY started_at DESC, session_id`
	var args []any
	if limit > 0 {
		q += "\n\t\tLIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres history: recent: %w", err)
	}
	return collectEntries(rows)
}

// Search returns up to limit sessions whose text matches the full-text query,
// newest first. The query is passed to plainto_tsquery so no operator syntax
// is required.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT session_id, started_at, ended_at, model, text
		FROM   dictation_sessions
		WHERE  to_tsvector('simple', text) @@ plainto_tsquery('simple', $1)
		ORDER  BY started_at DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres history: search: %w", err)
	}
	return collectEntries(rows)
}

// Get implements [history.Store].
func (s *Store) Get(ctx context.Context, sessionID string) (history.Entry, error) {
	const q = `
		SELECT session_id, started_at, ended_at, model, text
		FROM   dictation_sessions
		WHERE  session_id = $1`

	var e history.Entry
	err := s.pool.QueryRow(ctx, q, sessionID).Scan(&e.SessionID, &e.StartedAt, &e.EndedAt, &e.Model, &e.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return history.Entry{}, history.ErrNotFound
	}
	if err != nil {
		return history.Entry{}, fmt.Errorf("postgres history: get: %w", err)
	}
	return e, nil
}

// Ping implements [history.Store].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres history: ping: %w", err)
	}
	return nil
}

// Close implements [history.Store]. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func collectEntries(rows pgx.Rows) ([]history.Entry, error) {
	defer rows.Close()

	var out []history.Entry
	for rows.Next() {
		var e history.Entry
		if err := rows.Scan(&e.SessionID, &e.StartedAt, &e.EndedAt, &e.Model, &e.Text); err != nil {
			return nil, fmt.Errorf("postgres history: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres history: rows: %w", err)
	}
	return out, nil
}
