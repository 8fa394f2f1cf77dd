// Package cmd contains the fhesim command line tooling.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fhesim/fhesim/foundation/fhe"
)

var (
	schemeFile string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&schemeFile, "scheme-file", "s", "", "Path to a scheme parameter file.")
}

var rootCmd = &cobra.Command{
	Use:   "fhesim",
	Short: "Run encrypted state transition simulations from the command line.",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadParams resolves the scheme parameters for a command run, preferring the
// file named on the command line over the built in defaults.
func loadParams() (fhe.Params, error) {
	if schemeFile == "" {
		return fhe.DefaultParams(), nil
	}

	return fhe.LoadParams(schemeFile)
}
