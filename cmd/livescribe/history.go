package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/livescribe/internal/app"
	"github.com/MrWong99/livescribe/internal/config"
	"github.com/MrWong99/livescribe/pkg/history"
)

// previewLen bounds the text column of the history listing, in runes.
const previewLen = 60

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved dictation sessions",
	Long: `List the most recent dictation sessions from the configured history
backend, newest first. The memory backend only lives as long as one process,
so this is mostly useful with history.backend=postgres.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reg := config.NewRegistry()
		app.RegisterBuiltins(reg, os.Stdout)

		ctx := cmd.Context()
		store, err := reg.CreateHistory(ctx, cfg.History)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		if store == nil {
			return fmt.Errorf("history is disabled (history.backend=%s)", cfg.History.Backend)
		}
		defer store.Close()

		entries, err := store.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		return printHistory(cmd.OutOrStdout(), entries)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of sessions to list (0 for all)")
}

func printHistory(w io.Writer, entries []history.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no sessions recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tMODEL\tSESSION\tTEXT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Duration().Round(time.Second),
			e.Model,
			e.SessionID,
			preview(e.Text),
		)
	}
	return tw.Flush()
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen-1]) + "…"
}
