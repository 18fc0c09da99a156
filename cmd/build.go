package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rxintel-group/exposure-cli/internal/output"
)

var (
	buildForce   bool
	buildProfile string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the full scoring pipeline",
	Long: "Loads the pharmacy table, computes proximity-weighted GLP-1 claims,\n" +
		"scores and grades every pharmacy, allocates state fill totals, and\n" +
		"writes the scored CSV, grade-A CSV, and outreach workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if buildProfile != "" {
			cfg.Score.ProfilePath = buildProfile
		}

		p, st, err := initPipeline(ctx, buildForce)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := p.Build(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, output.Summary(res.Pharmacies))
		fmt.Fprintf(os.Stdout, "Scored table written to %s\n", res.OutputPath)
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "re-download reference data and re-filter claims")
	buildCmd.Flags().StringVar(&buildProfile, "profile", "", "scoring profile YAML (default: built-in outreach profile)")
	rootCmd.AddCommand(buildCmd)
}
