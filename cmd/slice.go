package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rxintel-group/exposure-cli/internal/pipeline"
)

var sliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Split the scored output into per-state CSVs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, st, err := initPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := p.Slice(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %d state files to %s\n", n,
			filepath.Join(cfg.Paths.OutputDir, pipeline.StateSliceDir))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sliceCmd)
}
