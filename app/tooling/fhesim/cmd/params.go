package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/fhesim/fhesim/foundation/fhe"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the effective scheme parameters.",
	Run:   paramsRun,
}

func init() {
	rootCmd.AddCommand(paramsCmd)
}

func paramsRun(cmd *cobra.Command, args []string) {
	params, err := loadParams()
	if err != nil {
		log.Fatal(err)
	}

	if err := fhe.WriteParams(os.Stdout, params); err != nil {
		log.Fatal(err)
	}
}
