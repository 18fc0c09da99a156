package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var validateVerbose bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the scored output for internal consistency",
	Long: "Re-reads the scored CSV and verifies score bounds, per-state fill\n" +
		"conservation, grade distribution, proximity coverage, and row-count\n" +
		"stability. Exits nonzero when any check fails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, st, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := p.Validate(ctx)
		if err != nil {
			return err
		}

		if validateVerbose {
			fmt.Fprint(os.Stdout, report.String())
		} else {
			for _, c := range report.Checks {
				if !c.Passed {
					fmt.Fprintf(os.Stdout, "FAIL  %s: %s\n", c.Name, c.Detail)
				}
			}
		}

		if !report.Passed() {
			return eris.New("validation failed")
		}
		fmt.Fprintf(os.Stdout, "All %d checks passed.\n", len(report.Checks))
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateVerbose, "verbose", false, "print every check, not just failures")
	rootCmd.AddCommand(validateCmd)
}
