// Package main is the entrypoint for the Risco procurement-risk service.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/risco/internal/classifier"
)

// version is set at build time via -ldflags.
var version = "dev"

// exitQualityGate is returned when a manual training run is rejected.
const exitQualityGate = 2

var rootCmd = &cobra.Command{
	Use:   "risco",
	Short: "Procurement risk scoring service",
	Long: "Risco predicts execution distress of public-procurement studies,\n" +
		"explains the drivers of each prediction and serves a risk matrix.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var qe *classifier.TrainingQualityError
	if errors.As(err, &qe) {
		return exitQualityGate
	}
	return 1
}
