// Package batch coordinates one end to end simulation run: fetching the
// transaction batch, driving the simulator over it, and assembling the final
// report. Both the CLI and the engine service run batches through this API.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fhesim/fhesim/business/sys/optimism"
	"github.com/fhesim/fhesim/foundation/bench"
	"github.com/fhesim/fhesim/foundation/fhe"
	"github.com/fhesim/fhesim/foundation/gas"
	"github.com/fhesim/fhesim/foundation/report"
	"github.com/fhesim/fhesim/foundation/sim"
)

// Config represents the configuration required to run a batch.
type Config struct {
	Params    fhe.Params
	Table     gas.WeightTable
	Client    *optimism.Client
	NumBlocks int
	Seeds     map[common.Address]float64
	EvHandler sim.EventHandler
}

// Runner owns the state of one simulation run. A Runner is used for exactly
// one batch; the report it produces is write once.
type Runner struct {
	cfg      Config
	recorder *bench.Recorder
	ev       sim.EventHandler

	mu   sync.RWMutex
	rep  report.Report
	done bool
}

// NewRunner constructs a Runner with a fresh benchmark recorder scoped to
// this run.
func NewRunner(cfg Config) *Runner {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Runner{
		cfg:      cfg,
		recorder: bench.New(),
		ev:       ev,
	}
}

// Run executes the batch. Per transaction failures are recorded in the
// report and do not fail the run; retrieval and setup failures do.
func (r *Runner) Run(ctx context.Context) error {
	r.ev("batch: fetching the latest %d blocks", r.cfg.NumBlocks)

	data, err := r.cfg.Client.FetchTransactions(ctx, r.cfg.NumBlocks)
	if err != nil {
		return err
	}
	r.ev("batch: fetched %d transactions across %d blocks", len(data.Txs), data.Stats.Blocks)

	s, err := sim.New(sim.Config{
		Params:    r.cfg.Params,
		Secret:    fhe.NewSecret(),
		Recorder:  r.recorder,
		EvHandler: r.ev,
	})
	if err != nil {
		return fmt.Errorf("constructing simulator: %w", err)
	}

	for party, balance := range r.cfg.Seeds {
		if err := s.Seed(party, balance); err != nil {
			return fmt.Errorf("seeding party %s: %w", party.Hex(), err)
		}
	}

	results, err := s.Run(ctx, data.Txs)
	if err != nil {
		return fmt.Errorf("running batch: %w", err)
	}

	total, err := s.AggregateTotal()
	if err != nil {
		r.ev("batch: aggregate total: %s", err)
	}

	finals := make(map[string]float64)
	for party, value := range s.FinalStates() {
		finals[party.Hex()] = value
	}

	rep := report.Build(report.BuildConfig{
		Params:         r.cfg.Params,
		WeightTable:    r.cfg.Table,
		Results:        results,
		Recorder:       r.recorder,
		Blocks:         data.Stats,
		FinalStates:    finals,
		AggregateTotal: total,
		EvHandler:      r.ev,
	})

	r.mu.Lock()
	r.rep = rep
	r.done = true
	r.mu.Unlock()

	r.ev("batch: run %s complete: %d committed, %d failed", rep.RunID, rep.Committed, rep.Failed)
	return nil
}

// Report returns the final report and whether the run has completed.
func (r *Runner) Report() (report.Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rep, r.done
}

// Samples returns the benchmark samples recorded so far.
func (r *Runner) Samples() []bench.Sample {
	return r.recorder.Samples()
}
