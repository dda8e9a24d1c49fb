// Package app wires all livescribe subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the shared subsystems
// (history store, vocabulary, session manager), StartAdmin serves health and
// metrics, Dictate runs one dictation session, and Shutdown tears everything
// down in order.
//
// For testing, inject mock implementations via functional options
// (WithClient, WithHistory, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/internal/dictation"
	"github.com/MrWong99/livescribe/internal/health"
	"github.com/MrWong99/livescribe/internal/observe"
	"github.com/MrWong99/livescribe/internal/resilience"
	"github.com/MrWong99/livescribe/pkg/audio"
	"github.com/MrWong99/livescribe/pkg/history"
	"github.com/MrWong99/livescribe/pkg/provider/stt"
	"github.com/MrWong99/livescribe/pkg/provider/stt/realtime"
	"github.com/MrWong99/livescribe/pkg/sink"
)

// adminReadHeaderTimeout bounds slow admin clients.
const adminReadHeaderTimeout = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	mu  sync.RWMutex
	cfg *config.Config

	registry   *config.Registry
	client     stt.Client
	history    history.Store
	vocab      *vocabulary
	metrics    *observe.Metrics
	levelVar   *slog.LevelVar
	overlayOut io.Writer
	sessions   *SessionManager

	// breakers guard each sink by name and outlive single sessions.
	breakerMu sync.Mutex
	breakers  map[string]*resilience.Breaker

	admin     *http.Server
	adminAddr net.Addr

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithClient injects the transcription client used by every session instead
// of creating a realtime client per session.
func WithClient(c stt.Client) Option {
	return func(a *App) { a.client = c }
}

// WithHistory injects a history store instead of creating one from config.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithRegistry replaces the sink and history registry. The default registry
// holds the built-in sinks and backends.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets config reloads change the log level through lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithOverlayWriter sets where the live overlay renders. Default: stderr.
func WithOverlayWriter(w io.Writer) Option {
	return func(a *App) { a.overlayOut = w }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if a.registry == nil {
		a.registry = config.NewRegistry()
		RegisterBuiltins(a.registry, os.Stdout)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.overlayOut == nil {
		a.overlayOut = os.Stderr
	}

	// ── 1. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 2. Vocabulary ────────────────────────────────────────────────────
	a.vocab = newVocabulary(cfg.Vocabulary)

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.sessions = NewSessionManager(a.buildSession)

	return a, nil
}

func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}
	store, err := a.registry.CreateHistory(ctx, a.cfg.History)
	if err != nil {
		return err
	}
	if store == nil {
		slog.Info("dictation history disabled")
		return nil
	}
	a.history = store
	a.closers = append(a.closers, store.Close)
	slog.Info("history store ready", "backend", a.cfg.History.Backend)
	return nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// History returns the history store, or nil when history is disabled.
func (a *App) History() history.Store { return a.history }

// ─── Sessions ────────────────────────────────────────────────────────────────

// NewSource wraps r in an audio source configured from the audio section.
func (a *App) NewSource(r io.Reader) audio.Source {
	cfg := a.Config().Audio
	return audio.NewReaderSource(r,
		audio.WithChunkDuration(cfg.ChunkDuration()),
		audio.WithInputFormat(audio.Format{SampleRate: cfg.InputSampleRate, Channels: cfg.InputChannels}),
		audio.WithRealtime(cfg.Realtime),
	)
}

// Dictate runs one dictation session reading from src and blocks until it
// has finished. Cancelling ctx stops capture; the session still inserts its
// final text before Dictate returns.
func (a *App) Dictate(ctx context.Context, src audio.Source) (*dictation.Result, error) {
	if _, err := a.sessions.Start(ctx, src); err != nil {
		return nil, err
	}
	return a.sessions.Wait(context.WithoutCancel(ctx))
}

// buildSession prepares a session from the current config.
func (a *App) buildSession(_ context.Context, src audio.Source) (*Session, error) {
	cfg := a.Config()

	inserter, err := a.registry.CreateSink(cfg.Insertion)
	if err != nil {
		return nil, fmt.Errorf("create sink %q: %w", cfg.Insertion.Sink, err)
	}
	var closers []func() error
	if c, ok := closeIfCloser(inserter); ok {
		closers = append(closers, c)
	}
	guarded := resilience.Guard(inserter, a.sinkBreaker(cfg.Insertion.Sink))

	client := a.client
	if client == nil {
		client = realtime.New(
			realtime.WithKeepaliveInterval(cfg.Transcription.KeepaliveInterval),
			realtime.WithLogger(slog.Default()),
		)
	}

	var overlay sink.Overlay
	if cfg.Insertion.Overlay {
		overlay = sink.NewTerminalOverlay(a.overlayOut, sink.DefaultOverlayTheme)
	}

	tc := cfg.Transcription
	orch, err := dictation.New(dictation.Config{
		Client: client,
		Connection: stt.Config{
			Endpoint:           tc.Endpoint,
			APIKey:             tc.APIKey,
			Model:              tc.Model,
			TranscriptionDelay: time.Duration(tc.TranscriptionDelayMS) * time.Millisecond,
		},
		Source:          src,
		Inserter:        guarded,
		SinkName:        cfg.Insertion.Sink,
		Overlay:         overlay,
		Corrector:       a.vocab,
		History:         a.history,
		Metrics:         a.metrics,
		Mode:            dictation.Mode(cfg.Insertion.Mode),
		CommitInterval:  tc.CommitInterval,
		FinalizeTimeout: tc.FinalizeTimeout,
		Reconnect: dictation.ReconnectPolicy{
			MaxRetries: tc.Reconnect.MaxRetries,
			Backoff:    tc.Reconnect.Backoff,
			MaxBackoff: tc.Reconnect.MaxBackoff,
		},
		Logger: slog.Default(),
	})
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}

	return &Session{
		Orchestrator: orch,
		Info: SessionInfo{
			Model: tc.Model,
			Sink:  cfg.Insertion.Sink,
		},
		Closers: closers,
	}, nil
}

// sinkBreaker returns the breaker for the named sink, creating it on first
// use.
func (a *App) sinkBreaker(name string) *resilience.Breaker {
	a.breakerMu.Lock()
	defer a.breakerMu.Unlock()
	if a.breakers == nil {
		a.breakers = make(map[string]*resilience.Breaker)
	}
	b, ok := a.breakers[name]
	if !ok {
		b = resilience.NewBreaker(resilience.BreakerConfig{Name: "sink/" + name})
		a.breakers[name] = b
	}
	return b
}

// ─── Config reload ───────────────────────────────────────────────────────────

// OnConfigChange applies a reloaded config. The log level and vocabulary
// change immediately; everything else applies to the next session. It has
// the signature expected by [config.NewWatcher].
func (a *App) OnConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)

	a.mu.Lock()
	a.cfg = new
	a.mu.Unlock()

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VocabularyChanged {
		a.vocab.set(d.NewVocabulary)
		slog.Info("vocabulary reloaded", "words", len(d.NewVocabulary.Words))
	}
	if len(d.RestartRequired) > 0 {
		slog.Info("config change applies to the next session", "sections", d.RestartRequired)
	}
}

// SlogLevel maps a config log level to its slog level. Unknown levels map to
// Info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Admin server ────────────────────────────────────────────────────────────

// StartAdmin serves /healthz, /readyz and /metrics on server.listen_addr.
// It does nothing when listen_addr is empty.
func (a *App) StartAdmin() error {
	addr := a.Config().Server.ListenAddr
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: admin listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	health.New(
		health.Checker{Name: "config", Check: a.checkConfig},
		health.PingChecker("history", a.history),
		health.Checker{Name: "sink", Check: a.checkSinks, Optional: true},
	).ReportSession(func() string {
		return a.sessions.Info().SessionID
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: adminReadHeaderTimeout,
	}
	a.admin = srv
	a.adminAddr = ln.Addr()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server error", "err", err)
		}
	}()
	slog.Info("admin server listening", "addr", ln.Addr().String())
	return nil
}

// AdminAddr returns the admin server's listen address, or nil when it is not
// running.
func (a *App) AdminAddr() net.Addr { return a.adminAddr }

func (a *App) checkConfig(context.Context) error {
	if a.Config() == nil {
		return errors.New("config not loaded")
	}
	return nil
}

// checkSinks fails while any sink breaker is not closed.
func (a *App) checkSinks(context.Context) error {
	a.breakerMu.Lock()
	defer a.breakerMu.Unlock()
	var errs []error
	for _, b := range a.breakers {
		if st := b.State(); st != resilience.StateClosed {
			errs = append(errs, fmt.Errorf("%s circuit %s", b.Name(), st))
		}
	}
	return errors.Join(errs...)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops any active session, the admin server and all subsystems. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.sessions.IsActive() {
			if _, err := a.sessions.Stop(ctx); err != nil {
				slog.Warn("stop active session", "err", err)
			}
		}

		if a.admin != nil {
			if err := a.admin.Shutdown(ctx); err != nil {
				slog.Warn("admin server shutdown error", "err", err)
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
