package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/pkg/history"
	"github.com/MrWong99/livescribe/pkg/history/postgres"
	"github.com/MrWong99/livescribe/pkg/sink"
)

// ErrClipboardUnavailable is returned by the clipboard sink factory when no
// system clipboard backend (xclip, xsel, wl-copy, pbcopy, ...) was found.
var ErrClipboardUnavailable = errors.New("app: no clipboard backend available")

// RegisterBuiltins wires the sinks and history backends that ship with
// livescribe into reg. The stdout sink writes to stdout.
//
// The "none" history backend yields a nil store, which disables history.
func RegisterBuiltins(reg *config.Registry, stdout io.Writer) {
	// ── Sinks ─────────────────────────────────────────────────────────────────

	reg.RegisterSink(config.SinkStdout, func(config.InsertionConfig) (sink.Inserter, error) {
		return sink.NewWriter(stdout), nil
	})

	reg.RegisterSink(config.SinkClipboard, func(config.InsertionConfig) (sink.Inserter, error) {
		if !sink.ClipboardAvailable() {
			return nil, ErrClipboardUnavailable
		}
		return sink.NewClipboard(), nil
	})

	reg.RegisterSink(config.SinkFile, func(cfg config.InsertionConfig) (sink.Inserter, error) {
		w, err := sink.OpenFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return w, nil
	})

	// ── History ───────────────────────────────────────────────────────────────

	reg.RegisterHistory(config.HistoryMemory, func(context.Context, config.HistoryConfig) (history.Store, error) {
		return history.NewMemStore(), nil
	})

	reg.RegisterHistory(config.HistoryPostgres, func(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	})

	reg.RegisterHistory(config.HistoryNone, func(context.Context, config.HistoryConfig) (history.Store, error) {
		return nil, nil
	})

	for _, name := range reg.Sinks() {
		slog.Debug("registered sink", "name", name)
	}
}
