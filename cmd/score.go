package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rxintel-group/exposure-cli/internal/output"
)

var scoreProfile string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Re-score an already-enriched pharmacy table",
	Long: "Recomputes composite scores, fill allocation, and grades without\n" +
		"touching reference downloads or proximity aggregation. Useful for\n" +
		"iterating on a scoring profile.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if scoreProfile != "" {
			cfg.Score.ProfilePath = scoreProfile
		}

		p, st, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := p.Score(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, output.Summary(res.Pharmacies))
		fmt.Fprintf(os.Stdout, "Scored table written to %s\n", res.OutputPath)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreProfile, "profile", "", "scoring profile YAML (default: built-in outreach profile)")
	rootCmd.AddCommand(scoreCmd)
}
