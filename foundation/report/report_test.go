package report_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fhesim/fhesim/foundation/bench"
	"github.com/fhesim/fhesim/foundation/fhe"
	"github.com/fhesim/fhesim/foundation/gas"
	"github.com/fhesim/fhesim/foundation/report"
	"github.com/fhesim/fhesim/foundation/sim"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func runBatch(t *testing.T) report.Report {
	t.Helper()

	params := fhe.DefaultParams()
	recorder := bench.New()

	s, err := sim.New(sim.Config{
		Params:   params,
		Secret:   fhe.NewSecret(),
		Recorder: recorder,
	})
	if err != nil {
		t.Fatalf("constructing simulator: %v", err)
	}

	alice := common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	bob := common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

	txs := []sim.Tx{
		{ID: "tx-1", From: alice, To: bob, Kind: sim.TxTransfer, Value: 30, Gas: 21000},
		{ID: "tx-2", From: alice, To: bob, Kind: sim.TxTransfer, Value: params.MaxPlaintext * 2, Gas: 21000},
	}

	results, err := s.Run(context.Background(), txs)
	if err != nil {
		t.Fatalf("running batch: %v", err)
	}

	total, _ := s.AggregateTotal()

	finals := make(map[string]float64)
	for party, value := range s.FinalStates() {
		finals[party.Hex()] = value
	}

	return report.Build(report.BuildConfig{
		Params:         params,
		WeightTable:    gas.DefaultTable(),
		Results:        results,
		Recorder:       recorder,
		FinalStates:    finals,
		AggregateTotal: total,
	})
}

func Test_Build(t *testing.T) {
	t.Log("Given the need to assemble a report from a completed batch.")
	{
		t.Logf("\tTest 0:\tWhen the batch has one commit and one failure.")
		{
			r := runBatch(t)

			if r.Committed != 1 || r.Failed != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould count one commit and one failure: got %d/%d", failed, r.Committed, r.Failed)
			}
			t.Logf("\t%s\tTest 0:\tShould count one commit and one failure.", success)

			if len(r.Failures) != 1 || r.Failures[0].TxID != "tx-2" {
				t.Errorf("\t%s\tTest 0:\tShould list the failed transaction.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould list the failed transaction.", success)
			}

			if r.Transactions[0].FHEGas == 0 || r.Transactions[0].OverheadRatio == 0 {
				t.Errorf("\t%s\tTest 0:\tShould estimate gas for the committed transaction.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould estimate gas for the committed transaction.", success)
			}

			if r.Gas.Estimated != 1 {
				t.Errorf("\t%s\tTest 0:\tShould aggregate exactly one comparison: got %d", failed, r.Gas.Estimated)
			} else {
				t.Logf("\t%s\tTest 0:\tShould aggregate exactly one comparison.", success)
			}

			if len(r.Bench) == 0 {
				t.Errorf("\t%s\tTest 0:\tShould include the benchmark summaries.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould include the benchmark summaries.", success)
			}

			// Only the committed value of 30 enters the distribution.
			v := r.Values
			if v.Count != 1 || v.Mean != 30 || v.Median != 30 || v.Min != 30 || v.Max != 30 || v.Variance != 0 {
				t.Errorf("\t%s\tTest 0:\tShould compute the value statistics over committed values: got %+v", failed, v)
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute the value statistics over committed values.", success)
			}

			if r.RunID == "" {
				t.Errorf("\t%s\tTest 0:\tShould assign a run id.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould assign a run id.", success)
			}
		}
	}
}

func Test_ValueStats(t *testing.T) {
	t.Log("Given the need to summarize the committed value distribution.")
	{
		t.Logf("\tTest 0:\tWhen the batch commits an even number of values.")
		{
			alice := common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
			bob := common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

			results := []sim.TxResult{
				{Tx: sim.Tx{ID: "tx-1", From: alice, To: bob, Value: 10}, Status: sim.StatusCommitted, Trace: sim.Trace{{Op: fhe.OpAdd, OperandSizes: []int{4096}}}},
				{Tx: sim.Tx{ID: "tx-2", From: alice, To: bob, Value: 30}, Status: sim.StatusCommitted, Trace: sim.Trace{{Op: fhe.OpAdd, OperandSizes: []int{4096}}}},
				{Tx: sim.Tx{ID: "tx-3", From: alice, To: bob, Value: 20}, Status: sim.StatusCommitted, Trace: sim.Trace{{Op: fhe.OpAdd, OperandSizes: []int{4096}}}},
				{Tx: sim.Tx{ID: "tx-4", From: alice, To: bob, Value: 40}, Status: sim.StatusCommitted, Trace: sim.Trace{{Op: fhe.OpAdd, OperandSizes: []int{4096}}}},
			}

			r := report.Build(report.BuildConfig{
				Params:      fhe.DefaultParams(),
				WeightTable: gas.DefaultTable(),
				Results:     results,
			})

			v := r.Values
			if v.Count != 4 || v.Mean != 25 || v.Median != 25 || v.Min != 10 || v.Max != 40 {
				t.Errorf("\t%s\tTest 0:\tShould compute mean, median, min and max: got %+v", failed, v)
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute mean, median, min and max.", success)
			}

			if v.Variance != 125 {
				t.Errorf("\t%s\tTest 0:\tShould compute the population variance: got %g", failed, v.Variance)
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute the population variance.", success)
			}
		}
	}
}

func Test_BuildFailedWithoutError(t *testing.T) {
	t.Log("Given the need to assemble a report from results produced elsewhere.")
	{
		t.Logf("\tTest 0:\tWhen a failed result carries no error value.")
		{
			alice := common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
			bob := common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")

			results := []sim.TxResult{
				{Tx: sim.Tx{ID: "tx-1", From: alice, To: bob, Value: 5}, Status: sim.StatusFailed},
			}

			r := report.Build(report.BuildConfig{
				Params:      fhe.DefaultParams(),
				WeightTable: gas.DefaultTable(),
				Results:     results,
			})

			if r.Failed != 1 || len(r.Failures) != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould count the failure: got %d/%d", failed, r.Failed, len(r.Failures))
			}
			t.Logf("\t%s\tTest 0:\tShould count the failure.", success)

			if r.Failures[0].Reason == "" {
				t.Errorf("\t%s\tTest 0:\tShould record a non empty failure reason.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould record a non empty failure reason.", success)
			}
		}
	}
}

func Test_Writers(t *testing.T) {
	t.Log("Given the need to persist a report for the reporting side.")
	{
		t.Logf("\tTest 0:\tWhen writing the report as JSON and CSV.")
		{
			r := runBatch(t)

			var jsonBuf bytes.Buffer
			if err := report.WriteJSON(&jsonBuf, r); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to write JSON: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to write JSON.", success)

			if !strings.Contains(jsonBuf.String(), r.RunID) {
				t.Errorf("\t%s\tTest 0:\tShould include the run id in the JSON.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould include the run id in the JSON.", success)
			}

			var csvBuf bytes.Buffer
			if err := report.WriteCSV(&csvBuf, r); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to write CSV: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to write CSV.", success)

			lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
			if len(lines) != 1+len(r.Transactions) {
				t.Errorf("\t%s\tTest 0:\tShould write a header and one row per transaction: got %d lines", failed, len(lines))
			} else {
				t.Logf("\t%s\tTest 0:\tShould write a header and one row per transaction.", success)
			}
		}
	}
}
