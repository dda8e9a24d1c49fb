package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/app"
	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/internal/dictation"
	"github.com/MrWong99/livescribe/internal/observe"
)

const shutdownTimeout = 15 * time.Second

var inputPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dictate from a PCM16 file or stdin",
	Long: `Stream audio to the transcription backend and insert the transcript into
the configured sink. Capture ends at end of input or on SIGINT/SIGTERM; the
final transcript is still inserted before the command exits.

Examples:
  arecord -f S16_LE -r 16000 -c 1 -t raw | livescribe run
  livescribe -c dictation.yaml run --input note.pcm`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDictation(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "-", `raw PCM16 input file, "-" for stdin`)
}

func runDictation(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("livescribe starting",
		"version", version,
		"config", configPath,
		"log_level", cfg.Server.LogLevel,
	)

	if parent == nil {
		parent = context.Background()
	}

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(parent, observe.ProviderConfig{
		ServiceName:    "livescribe",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Input ────────────────────────────────────────────────────────────────
	in, closeIn, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer closeIn()

	// ── Application ──────────────────────────────────────────────────────────
	application, err := app.New(parent, cfg, app.WithLevelVar(levelVar))
	if err != nil {
		return err
	}

	watcher, err := config.NewWatcher(configPath, application.OnConfigChange)
	if err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
	} else {
		defer watcher.Stop()
		stopHUP := reloadOnHangup(watcher)
		defer stopHUP()
	}

	if err := application.StartAdmin(); err != nil {
		_ = application.Shutdown(context.Background())
		return err
	}

	printStartupSummary(os.Stderr, cfg)

	// ── Dictate ──────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, dictErr := application.Dictate(ctx, application.NewSource(in))
	if res != nil {
		printResult(os.Stderr, res)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	if dictErr != nil && !errors.Is(dictErr, context.Canceled) {
		return dictErr
	}
	return nil
}

// reloadOnHangup re-reads the config file on every SIGHUP until the
// returned function is called.
func reloadOnHangup(w *config.Watcher) func() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-hup:
				changed, err := w.Reload()
				switch {
				case err != nil:
					slog.Warn("SIGHUP reload failed, keeping previous config", "err", err)
				case !changed:
					slog.Info("SIGHUP reload: config unchanged")
				}
			}
		}
	}()
	return func() {
		signal.Stop(hup)
		close(done)
	}
}

// openInput opens path for reading; "-" means stdin.
func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// ── Output ──────────────────────────────────────────────────────────────────

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
)

func printStartupSummary(w io.Writer, cfg *config.Config) {
	rows := [][2]string{
		{"Endpoint", cfg.Transcription.Endpoint},
		{"Model", cfg.Transcription.Model},
		{"Sink", cfg.Insertion.Sink},
		{"Mode", string(cfg.Insertion.Mode)},
		{"History", cfg.History.Backend},
		{"Vocabulary", fmt.Sprintf("%d words", len(cfg.Vocabulary.Words))},
	}
	if cfg.Server.ListenAddr != "" {
		rows = append(rows, [2]string{"Admin", cfg.Server.ListenAddr})
	}
	fmt.Fprintln(w, boxStyle.Render(titleStyle.Render("livescribe")+"\n"+renderRows(rows)))
}

func printResult(w io.Writer, res *dictation.Result) {
	rows := [][2]string{
		{"Session", res.SessionID},
		{"Duration", res.Duration().Round(time.Millisecond).String()},
		{"Words", fmt.Sprintf("%d", len(strings.Fields(res.Text)))},
		{"Corrections", fmt.Sprintf("%d", len(res.Corrections))},
	}
	if res.Reconnects > 0 {
		rows = append(rows, [2]string{"Reconnects", fmt.Sprintf("%d", res.Reconnects)})
	}
	if res.InsertFailures > 0 {
		rows = append(rows, [2]string{"Failed", fmt.Sprintf("%d inserts", res.InsertFailures)})
	}
	fmt.Fprintln(w, boxStyle.Render(renderRows(rows)))
}

func renderRows(rows [][2]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = labelStyle.Render(r[0]) + r[1]
	}
	return strings.Join(lines, "\n")
}
