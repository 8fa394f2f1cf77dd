// Package gas estimates the gas cost of executing a traced operation
// sequence under FHE and compares it against the plaintext baseline the
// chain reported. Estimation is a pure function of the trace and the weight
// table.
package gas

import (
	"github.com/fhesim/fhesim/foundation/fhe"
	"github.com/fhesim/fhesim/foundation/sim"
)

// InvalidTraceError occurs when estimation receives an empty trace. It
// indicates an internal contract violation by the caller.
type InvalidTraceError struct{}

// Error implements the error interface.
func (e *InvalidTraceError) Error() string {
	return "empty operation trace"
}

// WeightTable maps each operation kind to its FHE overhead gas weight along
// with the per size cost of moving ciphertext bytes. The table is exhaustive
// over the operation set.
type WeightTable struct {
	Weights    map[fhe.Op]uint64 `json:"weights"`
	SizeUnit   int               `json:"size_unit"`   // Ciphertext bytes per size charge.
	SizeWeight uint64            `json:"size_weight"` // Gas charged per size unit per operand.
}

// defaultSizeUnit is the size charge granularity applied when a custom table
// leaves SizeUnit unset.
const defaultSizeUnit = 4096

// DefaultTable returns the weight table used when no overrides are
// configured. Multiplication is weighted an order of magnitude above
// addition, reflecting the ciphertext growth and relinearization work a real
// scheme performs; the comparison weight is the sum of its constituent
// primitives.
func DefaultTable() WeightTable {
	return WeightTable{
		Weights: map[fhe.Op]uint64{
			fhe.OpAdd:   5,
			fhe.OpSub:   5,
			fhe.OpMul:   50,
			fhe.OpCmpEq: 55,
		},
		SizeUnit:   defaultSizeUnit,
		SizeWeight: 8,
	}
}

// Comparison is the result of comparing the FHE estimate against the
// plaintext baseline for one transaction.
type Comparison struct {
	FHEGas        uint64  `json:"fhe_gas"`
	BaselineGas   uint64  `json:"baseline_gas"`
	OverheadRatio float64 `json:"overhead_ratio"`
}

// Estimate maps a traced operation sequence to an estimated gas cost and the
// overhead ratio against the baseline. Calling it twice with the same inputs
// yields the same result.
func Estimate(table WeightTable, trace sim.Trace, baselineGas uint64) (Comparison, error) {
	if len(trace) == 0 {
		return Comparison{}, &InvalidTraceError{}
	}

	sizeUnit := table.SizeUnit
	if sizeUnit <= 0 {
		sizeUnit = defaultSizeUnit
	}

	var fheGas uint64
	for _, entry := range trace {
		fheGas += table.Weights[entry.Op]
		for _, size := range entry.OperandSizes {
			fheGas += uint64(size/sizeUnit) * table.SizeWeight
		}
	}

	cmp := Comparison{
		FHEGas:      fheGas,
		BaselineGas: baselineGas,
	}
	if baselineGas > 0 {
		cmp.OverheadRatio = float64(fheGas) / float64(baselineGas)
	}

	return cmp, nil
}

// Aggregate folds per transaction comparisons into batch level statistics.
type Aggregate struct {
	Estimated     int     `json:"estimated"`
	TotalBaseline uint64  `json:"total_baseline"`
	TotalFHE      uint64  `json:"total_fhe"`
	AvgBaseline   float64 `json:"avg_baseline"`
	MeanOverhead  float64 `json:"mean_overhead"`
	MaxOverhead   float64 `json:"max_overhead"`
}

// Summarize computes the batch level gas statistics from per transaction
// comparisons.
func Summarize(comparisons []Comparison) Aggregate {
	agg := Aggregate{Estimated: len(comparisons)}
	if len(comparisons) == 0 {
		return agg
	}

	var overheadSum float64
	for _, cmp := range comparisons {
		agg.TotalBaseline += cmp.BaselineGas
		agg.TotalFHE += cmp.FHEGas
		overheadSum += cmp.OverheadRatio
		if cmp.OverheadRatio > agg.MaxOverhead {
			agg.MaxOverhead = cmp.OverheadRatio
		}
	}

	agg.AvgBaseline = float64(agg.TotalBaseline) / float64(len(comparisons))
	agg.MeanOverhead = overheadSum / float64(len(comparisons))

	return agg
}
