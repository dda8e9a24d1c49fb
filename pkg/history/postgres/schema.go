package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlDictationSessions = `
CREATE TABLE IF NOT EXISTS dictation_sessions (
    session_id  TEXT         PRIMARY KEY,
    started_at  TIMESTAMPTZ  NOT NULL,
    ended_at    TIMESTAMPTZ  NOT NULL,
    model       TEXT         NOT NULL DEFAULT '',
    text        TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_dictation_sessions_started_at
    ON dictation_sessions (started_at DESC);

CREATE INDEX IF NOT EXISTS idx_dictation_sessions_fts
    ON dictation_sessions USING GIN (to_tsvector('simple', text));
`

// Migrate creates the dictation history table and its indexes if they do not
// already exist. It is idempotent and safe to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlDictationSessions); err != nil {
		return fmt.Errorf("postgres history: migrate: %w", err)
	}
	return nil
}
