// Command livescribe dictates speech into text sinks through a realtime
// transcription backend.
//
// Usage:
//
//	livescribe [--config path] <command> [flags]
//
// Commands:
//
//	run      - dictate from a PCM16 file or stdin
//	validate - check a configuration file
//	history  - list saved dictation sessions
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/app"
	"github.com/MrWong99/livescribe/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

// levelVar backs the process logger so config reloads can change verbosity.
var levelVar = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "livescribe",
	Short: "Streaming speech-to-text dictation",
	Long: `livescribe streams audio to a realtime transcription backend and inserts
the stabilized transcript into a text sink as you speak.

Audio is raw PCM16 little-endian. Configure the input rate and channel count
in the audio section; it is converted to 16 kHz mono before sending.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	rootCmd.AddCommand(runCmd, validateCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "livescribe:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config named by --config and installs the logger for
// its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Server.LogLevel)
	return cfg, nil
}

func setupLogger(level config.LogLevel) {
	levelVar.Set(app.SlogLevel(level))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))
}
