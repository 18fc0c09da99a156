package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download reference data from Census, CMS, and USDA",
	Long: "Downloads the ZCTA-county crosswalk, county adjacency table, RUCC codes,\n" +
		"and the Part D prescriber extract into the reference cache. Cached files\n" +
		"are kept unless --force is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, st, err := initPipeline(ctx, fetchForce)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := p.Fetch(ctx); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Reference data ready in %s\n", cfg.Paths.ReferenceDir)
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "re-download even when cached")
	rootCmd.AddCommand(fetchCmd)
}
