// Package report assembles the write once result of a batch run for the
// reporting side of the system. The engine produces one Report per run and
// has no opinion on how it is persisted beyond the JSON and CSV writers
// provided here.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fhesim/fhesim/foundation/bench"
	"github.com/fhesim/fhesim/foundation/fhe"
	"github.com/fhesim/fhesim/foundation/gas"
	"github.com/fhesim/fhesim/foundation/sim"
)

// TxReport is the per transaction row in the final report.
type TxReport struct {
	ID            string  `json:"id"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	Operations    int     `json:"operations"`
	NoiseFloor    int     `json:"noise_floor"`
	FHEGas        uint64  `json:"fhe_gas"`
	BaselineGas   uint64  `json:"baseline_gas"`
	OverheadRatio float64 `json:"overhead_ratio"`
	Error         string  `json:"error,omitempty"`
}

// Failure records why a transaction did not commit.
type Failure struct {
	TxID   string `json:"tx_id"`
	Reason string `json:"reason"`
}

// BlockStats carries the statistics computed over the fetched block headers.
type BlockStats struct {
	Blocks             int     `json:"blocks"`
	AvgBlockSize       float64 `json:"avg_block_size"`
	AvgBlockTime       float64 `json:"avg_block_time"`
	AvgGasPrice        float64 `json:"avg_gas_price"`
	GasPriceVolatility float64 `json:"gas_price_volatility"`
}

// TxValueStats carries the statistics computed over the committed
// transaction values.
type TxValueStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
}

// Report is the aggregate result of one batch run. It is write once:
// produced at the end of the batch and never mutated afterwards.
type Report struct {
	RunID          string               `json:"run_id"`
	CreatedAt      time.Time            `json:"created_at"`
	Scheme         fhe.Params           `json:"scheme"`
	Committed      int                  `json:"committed"`
	Failed         int                  `json:"failed"`
	Transactions   []TxReport           `json:"transactions"`
	Failures       []Failure            `json:"failures"`
	Bench          []bench.StageSummary `json:"bench"`
	Gas            gas.Aggregate        `json:"gas"`
	Values         TxValueStats         `json:"values"`
	Blocks         BlockStats           `json:"blocks"`
	FinalStates    map[string]float64   `json:"final_states"`
	AggregateTotal float64              `json:"aggregate_total"`
}

// BuildConfig carries everything the batch produced into the assembly of the
// final report.
type BuildConfig struct {
	Params         fhe.Params
	WeightTable    gas.WeightTable
	Results        []sim.TxResult
	Recorder       *bench.Recorder
	Blocks         BlockStats
	FinalStates    map[string]float64
	AggregateTotal float64
	EvHandler      func(v string, args ...any)
}

// Build assembles the report for a completed batch, running the gas
// estimation over every committed transaction's trace. An invalid trace is
// fatal only to that transaction's estimation.
func Build(cfg BuildConfig) Report {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	r := Report{
		RunID:          uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		Scheme:         cfg.Params,
		FinalStates:    cfg.FinalStates,
		AggregateTotal: cfg.AggregateTotal,
		Blocks:         cfg.Blocks,
	}

	var comparisons []gas.Comparison
	var values []float64
	for _, result := range cfg.Results {
		row := TxReport{
			ID:          result.Tx.ID,
			From:        result.Tx.From.Hex(),
			To:          result.Tx.To.Hex(),
			Kind:        string(result.Tx.Kind),
			Status:      string(result.Status),
			Operations:  len(result.Trace),
			NoiseFloor:  result.NoiseFloor,
			BaselineGas: result.Tx.Gas,
		}

		switch result.Status {
		case sim.StatusCommitted:
			r.Committed++
			values = append(values, result.Tx.Value)

			cmp, err := gas.Estimate(cfg.WeightTable, result.Trace, result.Tx.Gas)
			if err != nil {
				var traceErr *gas.InvalidTraceError
				if !errors.As(err, &traceErr) {
					ev("report: tx %s: estimate: %s", result.Tx.ID, err)
				} else {
					ev("report: tx %s: empty trace, estimation skipped", result.Tx.ID)
				}
				break
			}

			row.FHEGas = cmp.FHEGas
			row.OverheadRatio = cmp.OverheadRatio
			comparisons = append(comparisons, cmp)

		case sim.StatusFailed:
			r.Failed++
			reason := "unspecified failure"
			if result.Err != nil {
				reason = result.Err.Error()
			}
			row.Error = reason
			r.Failures = append(r.Failures, Failure{TxID: result.Tx.ID, Reason: reason})
		}

		r.Transactions = append(r.Transactions, row)
	}

	r.Gas = gas.Summarize(comparisons)
	r.Values = valueStats(values)
	if cfg.Recorder != nil {
		r.Bench = cfg.Recorder.Summarize()
	}

	return r
}

// valueStats computes the distribution statistics over the committed
// transaction values.
func valueStats(values []float64) TxValueStats {
	stats := TxValueStats{Count: len(values)}
	if len(values) == 0 {
		return stats
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		stats.Median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		stats.Median = sorted[mid]
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	stats.Mean = sum / float64(len(sorted))

	var sq float64
	for _, v := range sorted {
		sq += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Variance = sq / float64(len(sorted))

	return stats
}

// =============================================================================

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes the per transaction rows as CSV.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "from", "to", "kind", "status", "operations", "noise_floor", "fhe_gas", "baseline_gas", "overhead_ratio", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, tx := range r.Transactions {
		row := []string{
			tx.ID,
			tx.From,
			tx.To,
			tx.Kind,
			tx.Status,
			strconv.Itoa(tx.Operations),
			strconv.Itoa(tx.NoiseFloor),
			strconv.FormatUint(tx.FHEGas, 10),
			strconv.FormatUint(tx.BaselineGas, 10),
			strconv.FormatFloat(tx.OverheadRatio, 'f', 6, 64),
			tx.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
