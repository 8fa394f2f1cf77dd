package sim

import (
	"github.com/fhesim/fhesim/foundation/fhe"
)

// TraceEntry records one homomorphic operation applied while simulating a
// transaction: the operation kind, the size classes of its operands, and the
// noise budget remaining on the result.
type TraceEntry struct {
	Op           fhe.Op `json:"op"`
	OperandSizes []int  `json:"operand_sizes"`
	NoiseBudget  int    `json:"noise_budget"`
}

// Trace is the ordered operation sequence recorded for one transaction. It
// is created fresh per transaction and handed to the gas estimator.
type Trace []TraceEntry

// NoiseFloor returns the smallest noise budget observed across the trace, or
// the fresh budget when the trace is empty.
func (t Trace) NoiseFloor(fresh int) int {
	floor := fresh
	for _, entry := range t {
		if entry.NoiseBudget < floor {
			floor = entry.NoiseBudget
		}
	}
	return floor
}
