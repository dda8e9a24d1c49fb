package dictation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/livescribe/pkg/provider/stt"
)

// Default reconnection parameters, used when the policy leaves them unset.
const (
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ReconnectPolicy controls automatic reconnection after the transcription
// connection drops while audio is still being captured.
type ReconnectPolicy struct {
	// MaxRetries is the number of consecutive reconnect attempts before the
	// session gives up. Zero disables reconnection.
	MaxRetries int

	// Backoff is the wait before the first attempt. It doubles with every
	// failed attempt up to MaxBackoff.
	Backoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration
}

// delay returns the wait before attempt n (1-based).
func (p ReconnectPolicy) delay(n int) time.Duration {
	d := p.Backoff
	if d <= 0 {
		d = defaultBackoff
	}
	limit := p.MaxBackoff
	if limit <= 0 {
		limit = defaultMaxBackoff
	}
	for i := 1; i < n && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

// reconnector re-establishes the transcription connection with exponential
// backoff. The attempt counter resets once a connection opens, so the
// policy bounds consecutive failures rather than the session total.
type reconnector struct {
	policy ReconnectPolicy
	client stt.Client
	cfg    stt.Config
	log    *slog.Logger

	// attempts is the number of attempts since the last successful open.
	attempts int

	// total counts every attempt of the session.
	total int
}

// connected marks the current connection as open.
func (r *reconnector) connected() {
	r.attempts = 0
}

// next waits out the backoff and starts a new connection attempt. It gives
// up when the retry budget is spent, when stop is closed, or when ctx is
// done. Connect errors consume an attempt and are retried.
func (r *reconnector) next(ctx context.Context, stop <-chan struct{}, record func(error)) (<-chan stt.Event, error) {
	if r.policy.MaxRetries <= 0 {
		return nil, ErrConnectionLost
	}
	for {
		if r.attempts >= r.policy.MaxRetries {
			return nil, fmt.Errorf("%w: gave up after %d reconnect attempts", ErrConnectionLost, r.attempts)
		}
		r.attempts++
		r.total++
		wait := r.policy.delay(r.attempts)

		r.log.Info("dictation: reconnecting",
			"attempt", r.attempts,
			"max_retries", r.policy.MaxRetries,
			"backoff", wait,
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-stop:
			t.Stop()
			return nil, errStopped
		case <-t.C:
		}

		events, err := r.client.Connect(ctx, r.cfg)
		record(err)
		if err == nil {
			return events, nil
		}
		r.log.Warn("dictation: reconnect attempt failed", "attempt", r.attempts, "err", err)
	}
}
