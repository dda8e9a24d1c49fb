package config

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultReloadInterval is how often a [Watcher] stats the config file.
const DefaultReloadInterval = 5 * time.Second

// ReloadFunc receives the previous and the newly loaded config after a
// successful reload. It has the shape of App.OnConfigChange.
type ReloadFunc func(old, new *Config)

// fileStamp identifies one version of the config file on disk.
type fileStamp struct {
	size  int64
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher keeps the config of a running dictation process in sync with its
// file. It stats the file on an interval and also reloads on demand through
// [Watcher.Reload] (SIGHUP in the CLI). A version that fails to parse or
// validate is reported and skipped; the previous config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc
	log      *slog.Logger

	current atomic.Pointer[Config]

	// reloadMu serialises reloads so callbacks see versions in order.
	reloadMu sync.Mutex
	stamp    fileStamp

	cancel   context.CancelFunc
	loopDone chan struct{}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. Default:
// [DefaultReloadInterval]. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for reload diagnostics.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher loads path and starts watching it. onReload may be nil. The
// initial load must succeed; later failures only log.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultReloadInterval,
		onReload: onReload,
		log:      slog.Default(),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, stamp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current.Store(cfg)
	w.stamp = stamp

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return w, nil
}

// Current returns the newest valid config.
func (w *Watcher) Current() *Config { return w.current.Load() }

// Stop ends polling and waits for an in-flight reload to finish. Calling it
// again is a no-op.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.loopDone
}

// Reload reads the file now, regardless of its modification time. It reports
// whether a new config was applied. An unchanged file is not an error.
func (w *Watcher) Reload() (bool, error) {
	return w.reload(true)
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.reload(false); err != nil {
				w.log.Warn("config: reload skipped, keeping previous config", "path", w.path, "err", err)
			}
		}
	}
}

// reload applies the file when its content differs from the current
// version. Without force, a file whose size and mtime are unchanged is not
// read at all.
func (w *Watcher) reload(force bool) (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	if !force {
		info, err := os.Stat(w.path)
		if err != nil {
			return false, err
		}
		if info.Size() == w.stamp.size && info.ModTime().Equal(w.stamp.mtime) {
			return false, nil
		}
	}

	cfg, stamp, err := w.read()
	if err != nil {
		var invalid *invalidConfigError
		if errors.As(err, &invalid) {
			// Remember the broken version so it is reported once.
			w.stamp = invalid.stamp
		}
		return false, err
	}
	sameContent := stamp.sum == w.stamp.sum
	w.stamp = stamp
	if sameContent {
		return false, nil
	}

	old := w.current.Swap(cfg)
	w.log.Info("config: reloaded", "path", w.path, "log_level", cfg.Server.LogLevel, "words", len(cfg.Vocabulary.Words))
	if w.onReload != nil {
		w.onReload(old, cfg)
	}
	return true, nil
}

// invalidConfigError is a file that was read but did not load.
type invalidConfigError struct {
	stamp fileStamp
	err   error
}

func (e *invalidConfigError) Error() string { return e.err.Error() }
func (e *invalidConfigError) Unwrap() error { return e.err }

func (w *Watcher) read() (*Config, fileStamp, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, fileStamp{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fileStamp{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fileStamp{}, err
	}

	stamp := fileStamp{size: info.Size(), mtime: info.ModTime(), sum: sha256.Sum256(data)}
	cfg, err := loadBytes(data)
	if err != nil {
		return nil, fileStamp{}, &invalidConfigError{stamp: stamp, err: err}
	}
	return cfg, stamp, nil
}
