package optimism_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fhesim/fhesim/business/sys/optimism"
	"github.com/fhesim/fhesim/foundation/sim"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const blockResult = `{
	"number": "%s",
	"size": "0x8000",
	"timestamp": "%s",
	"baseFeePerGas": "0x3b9aca00",
	"transactions": [
		{
			"hash": "0xaaa1",
			"from": "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4",
			"to": "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32",
			"value": "0xde0b6b3a7640000",
			"gas": "0x5208",
			"input": "0x"
		},
		{
			"hash": "0xaaa2",
			"from": "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4",
			"to": "0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8",
			"value": "0x6f05b59d3b20000",
			"gas": "0xc350",
			"input": "0xa9059cbb"
		},
		{
			"hash": "0xaaa3",
			"from": "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4",
			"to": "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32",
			"value": "0x0",
			"gas": "0x5208",
			"input": "0x"
		},
		{
			"hash": "0xaaa4",
			"from": "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4",
			"to": "",
			"value": "0xde0b6b3a7640000",
			"gas": "0x30d40",
			"input": "0x60806040"
		}
	]
}`

func newServer(t *testing.T, failFirstBlockCall bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var blockCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "eth_blockNumber":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"0x2"}`)

		case "eth_getBlockByNumber":
			calls := blockCalls.Add(1)
			if failFirstBlockCall && calls == 1 {
				fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":null}`)
				return
			}
			// Two seconds between consecutive blocks.
			tag := r.URL.Query().Get("tag")
			number, _ := strconv.ParseUint(strings.TrimPrefix(tag, "0x"), 16, 64)
			timestamp := fmt.Sprintf("%#x", 0x66f2a1c0+2*number)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, fmt.Sprintf(blockResult, tag, timestamp))

		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	})

	return httptest.NewServer(mux), &blockCalls
}

func newClient(srv *httptest.Server) *optimism.Client {
	return optimism.New(optimism.Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/api",
		Retries:    3,
		RetryDelay: time.Millisecond,
		HTTPClient: srv.Client(),
	})
}

func Test_FetchTransactions(t *testing.T) {
	srv, _ := newServer(t, false)
	defer srv.Close()

	t.Log("Given the need to flatten recent blocks into simulation records.")
	{
		t.Logf("\tTest 0:\tWhen fetching the latest two blocks.")
		{
			client := newClient(srv)

			batch, err := client.FetchTransactions(context.Background(), 2)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to fetch the batch: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to fetch the batch.", success)

			// Two usable transactions per block: the zero value transfer
			// and the contract creation are dropped.
			if len(batch.Txs) != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould keep four transactions: got %d", failed, len(batch.Txs))
			}
			t.Logf("\t%s\tTest 0:\tShould keep four transactions.", success)

			if batch.Txs[0].Kind != sim.TxTransfer || batch.Txs[1].Kind != sim.TxContractCall {
				t.Errorf("\t%s\tTest 0:\tShould classify transaction kinds from input data.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould classify transaction kinds from input data.", success)
			}

			if batch.Txs[0].Value != 1.0 {
				t.Errorf("\t%s\tTest 0:\tShould convert wei to ether: got %g", failed, batch.Txs[0].Value)
			} else {
				t.Logf("\t%s\tTest 0:\tShould convert wei to ether.", success)
			}

			if batch.Txs[0].Gas != 21000 {
				t.Errorf("\t%s\tTest 0:\tShould carry the baseline gas: got %d", failed, batch.Txs[0].Gas)
			} else {
				t.Logf("\t%s\tTest 0:\tShould carry the baseline gas.", success)
			}

			if batch.Stats.Blocks != 2 || batch.Stats.AvgBlockSize != 32768 {
				t.Errorf("\t%s\tTest 0:\tShould compute the block statistics: got %+v", failed, batch.Stats)
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute the block statistics.", success)
			}

			if batch.Stats.AvgBlockTime != 2 {
				t.Errorf("\t%s\tTest 0:\tShould compute the average block time: got %g", failed, batch.Stats.AvgBlockTime)
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute the average block time.", success)
			}
		}
	}
}

func Test_Retries(t *testing.T) {
	srv, blockCalls := newServer(t, true)
	defer srv.Close()

	t.Log("Given the need to retry transient block fetch failures.")
	{
		t.Logf("\tTest 0:\tWhen the first block request returns no result.")
		{
			client := newClient(srv)

			_, err := client.BlockByNumber(context.Background(), 2)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould succeed after a retry: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould succeed after a retry.", success)

			if blockCalls.Load() != 2 {
				t.Errorf("\t%s\tTest 0:\tShould have made exactly two block requests: got %d", failed, blockCalls.Load())
			} else {
				t.Logf("\t%s\tTest 0:\tShould have made exactly two block requests.", success)
			}
		}
	}
}

func Test_RetrievalError(t *testing.T) {
	t.Log("Given the need to treat an unreachable data source as fatal.")
	{
		t.Logf("\tTest 0:\tWhen the endpoint does not exist.")
		{
			client := optimism.New(optimism.Config{
				APIKey:     "test-key",
				BaseURL:    "http://127.0.0.1:0/api",
				Retries:    1,
				RetryDelay: time.Millisecond,
			})

			_, err := client.FetchTransactions(context.Background(), 1)

			var retErr *optimism.RetrievalError
			if !errors.As(err, &retErr) {
				t.Fatalf("\t%s\tTest 0:\tShould get a RetrievalError: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get a RetrievalError.", success)
		}
	}
}
