package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fipezap",
		Short: "FipeZap real-estate price dashboard",
		Long: `fipezap downloads the FipeZap historical series workbook, extracts the
series of one city sheet and serves them as charts.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.AddCommand(serveCmd(), extractCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
