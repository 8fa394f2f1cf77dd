// Package bench provides scoped wall clock and memory measurement around the
// stages of a simulation run. A Recorder is constructed per batch and passed
// explicitly so no benchmark state leaks between runs.
package bench

import (
	"runtime"
	"sort"
	"sync"
	"time"
)

// Set of stage names the engine measures.
const (
	StageEncrypt    = "encrypt"
	StageOp         = "hom-op"
	StageDecrypt    = "decrypt"
	StageTransition = "transition"
)

// Sample is the per stage record of one measured unit of work. Samples are
// append only and never mutated after creation.
type Sample struct {
	TxID       string        `json:"tx_id"`
	Stage      string        `json:"stage"`
	Duration   time.Duration `json:"duration"`
	AllocBytes uint64        `json:"alloc_bytes"`
	OK         bool          `json:"ok"`
}

// StageSummary aggregates the samples recorded for one stage.
type StageSummary struct {
	Stage          string        `json:"stage"`
	Count          int           `json:"count"`
	Failures       int           `json:"failures"`
	Mean           time.Duration `json:"mean"`
	Median         time.Duration `json:"median"`
	P95            time.Duration `json:"p95"`
	MeanAllocBytes uint64        `json:"mean_alloc_bytes"`
}

// Recorder accumulates benchmark samples for one batch run.
type Recorder struct {
	mu      sync.Mutex
	samples []Sample
}

// New constructs a Recorder for a single batch run.
func New() *Recorder {
	return &Recorder{}
}

// Measure runs fn under wall clock and allocation measurement. The sample is
// recorded even when fn fails, flagged as a failure, and the error then
// propagates to the caller.
func (r *Recorder) Measure(stage string, txID string, fn func() error) error {
	var before runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()

	err := fn()

	duration := time.Since(start)
	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	sample := Sample{
		TxID:       txID,
		Stage:      stage,
		Duration:   duration,
		AllocBytes: after.TotalAlloc - before.TotalAlloc,
		OK:         err == nil,
	}

	r.mu.Lock()
	r.samples = append(r.samples, sample)
	r.mu.Unlock()

	return err
}

// Samples returns a copy of every sample recorded so far.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	samples := make([]Sample, len(r.samples))
	copy(samples, r.samples)
	return samples
}

// Summarize aggregates the recorded samples per stage, ordered by stage name.
func (r *Recorder) Summarize() []StageSummary {
	samples := r.Samples()

	byStage := make(map[string][]Sample)
	for _, sample := range samples {
		byStage[sample.Stage] = append(byStage[sample.Stage], sample)
	}

	summaries := make([]StageSummary, 0, len(byStage))
	for stage, group := range byStage {
		durations := make([]time.Duration, 0, len(group))

		summary := StageSummary{
			Stage: stage,
			Count: len(group),
		}

		var totalDur time.Duration
		var totalAlloc uint64
		for _, sample := range group {
			durations = append(durations, sample.Duration)
			totalDur += sample.Duration
			totalAlloc += sample.AllocBytes
			if !sample.OK {
				summary.Failures++
			}
		}

		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		summary.Mean = totalDur / time.Duration(len(group))
		summary.Median = durations[len(durations)/2]
		summary.P95 = durations[percentileIndex(len(durations), 95)]
		summary.MeanAllocBytes = totalAlloc / uint64(len(group))

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Stage < summaries[j].Stage })
	return summaries
}

// percentileIndex returns the index of the pth percentile in a sorted slice
// of n elements.
func percentileIndex(n int, p int) int {
	idx := (n*p + 99) / 100
	if idx > 0 {
		idx--
	}
	return idx
}
