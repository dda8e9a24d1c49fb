package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file",
	Long: `Load, default and validate the configuration file. Every problem found is
reported, not just the first one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (model %s, sink %s)\n",
			configPath, cfg.Transcription.Model, cfg.Insertion.Sink)
		return nil
	},
}
