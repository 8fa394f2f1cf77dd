package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/fhesim/fhesim/business/core/batch"
	"github.com/fhesim/fhesim/business/sys/optimism"
	"github.com/fhesim/fhesim/foundation/gas"
	"github.com/fhesim/fhesim/foundation/report"
)

var (
	numBlocks int
	seedPairs []string
	baseURL   string
	apiKey    string
	jsonOut   string
	csvOut    string
	verbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch a transaction batch and run the encrypted simulation over it.",
	Run:   runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVarP(&numBlocks, "blocks", "b", 4, "Number of recent blocks to fetch.")
	runCmd.Flags().StringSliceVar(&seedPairs, "seed", nil, "Initial balances as 0xaddress:amount pairs.")
	runCmd.Flags().StringVarP(&baseURL, "url", "u", optimism.DefaultBaseURL, "Url of the block data API.")
	runCmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "API key for the block data API.")
	runCmd.Flags().StringVar(&jsonOut, "json", "report.json", "Path to write the JSON report.")
	runCmd.Flags().StringVar(&csvOut, "csv", "", "Path to write the per transaction CSV, skipped when empty.")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print engine events while the run progresses.")
}

func runRun(cmd *cobra.Command, args []string) {
	params, err := loadParams()
	if err != nil {
		log.Fatal(err)
	}

	seeds, err := parseSeeds(seedPairs)
	if err != nil {
		log.Fatal(err)
	}

	ev := func(v string, a ...any) {
		if verbose {
			fmt.Printf(v+"\n", a...)
		}
	}

	client := optimism.New(optimism.Config{
		APIKey:    apiKey,
		BaseURL:   baseURL,
		EvHandler: ev,
	})

	runner := batch.NewRunner(batch.Config{
		Params:    params,
		Table:     gas.DefaultTable(),
		Client:    client,
		NumBlocks: numBlocks,
		Seeds:     seeds,
		EvHandler: ev,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Retrieval and key handling failures abort the run. Per transaction
	// failures are part of a processed batch and show up in the report.
	if err := runner.Run(ctx); err != nil {
		var rerr *optimism.RetrievalError
		switch {
		case errors.As(err, &rerr):
			log.Fatalf("retrieving block data: %s", err)
		default:
			log.Fatal(err)
		}
	}

	rep, done := runner.Report()
	if !done {
		log.Fatal("run finished without producing a report")
	}

	fmt.Printf("run %s: %d committed, %d failed\n", rep.RunID, rep.Committed, rep.Failed)
	fmt.Printf("fhe gas %d vs baseline %d (mean overhead %.2fx)\n", rep.Gas.TotalFHE, rep.Gas.TotalBaseline, rep.Gas.MeanOverhead)

	if err := writeJSONReport(jsonOut, rep); err != nil {
		log.Fatal(err)
	}
	fmt.Println("report written to", jsonOut)

	if csvOut != "" {
		if err := writeCSVReport(csvOut, rep); err != nil {
			log.Fatal(err)
		}
		fmt.Println("csv written to", csvOut)
	}
}

func writeJSONReport(path string, rep report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return report.WriteJSON(f, rep)
}

func writeCSVReport(path string, rep report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return report.WriteCSV(f, rep)
}

func parseSeeds(pairs []string) (map[common.Address]float64, error) {
	seeds := make(map[common.Address]float64)

	for _, pair := range pairs {
		addr, amount, found := strings.Cut(pair, ":")
		if !found {
			return nil, fmt.Errorf("seed %q is not in 0xaddress:amount form", pair)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("seed %q has an invalid address", pair)
		}
		value, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return nil, fmt.Errorf("seed %q has an invalid amount: %w", pair, err)
		}
		seeds[common.HexToAddress(addr)] = value
	}

	return seeds, nil
}
