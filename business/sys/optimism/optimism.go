// Package optimism provides the client for retrieving block and transaction
// data from an Etherscan style proxy API for the Optimism chain. The client
// flattens recent blocks into the transaction records the simulation engine
// consumes and computes the batch level block statistics.
package optimism

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"

	"github.com/fhesim/fhesim/foundation/report"
	"github.com/fhesim/fhesim/foundation/sim"
	"github.com/fhesim/fhesim/foundation/validate"
)

// DefaultBaseURL is the production Etherscan endpoint for Optimism.
const DefaultBaseURL = "https://api-optimistic.etherscan.io/api"

// RetrievalError occurs when the data source cannot supply the batch. It is
// fatal to the run: there is nothing to simulate without transactions.
type RetrievalError struct {
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieving chain data: %s", e.Err)
}

// Unwrap exposes the underlying cause.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// =============================================================================

// Config represents the configuration required to construct a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Retries    int
	RetryDelay time.Duration
	HTTPClient *http.Client
	EvHandler  func(v string, args ...any)
}

// Client provides access to the block and transaction data the engine needs.
type Client struct {
	apiKey     string
	baseURL    string
	retries    int
	retryDelay time.Duration
	http       *http.Client
	evHandler  func(v string, args ...any)
}

// New constructs a Client, applying defaults for anything not configured.
func New(cfg Config) *Client {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	c := Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		http:       cfg.HTTPClient,
		evHandler:  ev,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.retries == 0 {
		c.retries = 3
	}
	if c.retryDelay == 0 {
		c.retryDelay = 2 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}

	return &c
}

// Batch is the flattened result of walking recent blocks.
type Batch struct {
	Txs   []sim.Tx
	Stats report.BlockStats
}

// FetchTransactions walks the most recent numBlocks blocks and flattens
// their transactions into simulation records. Zero value transactions and
// contract creations are dropped. Failure to reach the API or an empty
// batch yields a RetrievalError.
func (c *Client) FetchTransactions(ctx context.Context, numBlocks int) (Batch, error) {
	latest, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return Batch{}, &RetrievalError{Err: err}
	}

	var blocks []Block
	for i := 0; i < numBlocks && uint64(i) <= latest; i++ {
		block, err := c.BlockByNumber(ctx, latest-uint64(i))
		if err != nil {
			c.evHandler("optimism: block %d: %s", latest-uint64(i), err)
			continue
		}
		blocks = append(blocks, block)
	}

	if len(blocks) == 0 {
		return Batch{}, &RetrievalError{Err: fmt.Errorf("no blocks retrieved from the latest %d", numBlocks)}
	}

	batch := Batch{
		Stats: blockStats(blocks),
	}

	for _, block := range blocks {
		number, err := hexutil.DecodeUint64(block.Number)
		if err != nil {
			c.evHandler("optimism: block number %q: %s", block.Number, err)
			continue
		}

		for _, blockTx := range block.Transactions {
			tx, ok := c.toSimTx(blockTx, number)
			if !ok {
				continue
			}
			batch.Txs = append(batch.Txs, tx)
		}
	}

	if len(batch.Txs) == 0 {
		return Batch{}, &RetrievalError{Err: fmt.Errorf("no usable transactions in the latest %d blocks", numBlocks)}
	}

	return batch, nil
}

// LatestBlockNumber returns the number of the most recent block.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.proxy(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}

	return hexutil.DecodeUint64(result)
}

// BlockByNumber returns the block with full transaction objects, retrying a
// bounded number of times on failure. The chain keeps producing blocks while
// we fetch, so a transient miss is worth re-requesting; nothing else in the
// system retries.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (Block, error) {
	values := url.Values{}
	values.Set("tag", hexutil.EncodeUint64(number))
	values.Set("boolean", "true")

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			c.evHandler("optimism: block %d: retry attempt %d", number, attempt)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return Block{}, ctx.Err()
			}
		}

		var block Block
		if err := c.proxy(ctx, "eth_getBlockByNumber", values, &block); err != nil {
			lastErr = err
			continue
		}

		if err := validate.Check(block); err != nil {
			lastErr = fmt.Errorf("validating block payload: %w", err)
			continue
		}

		return block, nil
	}

	return Block{}, fmt.Errorf("block %d after %d attempts: %w", number, c.retries, lastErr)
}

// =============================================================================

// proxy performs one request against the Etherscan proxy module and decodes
// the result payload.
func (c *Client) proxy(ctx context.Context, action string, values url.Values, result any) error {
	if values == nil {
		values = url.Values{}
	}
	values.Set("module", "proxy")
	values.Set("action", action)
	values.Set("apikey", c.apiKey)

	endpoint := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status code: %d", resp.StatusCode)
	}

	var envelope proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return fmt.Errorf("empty result for action %q: %s", action, envelope.Message)
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}

	return nil
}

// toSimTx converts one chain transaction into a simulation record, reporting
// whether the transaction is usable.
func (c *Client) toSimTx(blockTx BlockTx, blockNumber uint64) (sim.Tx, bool) {
	if err := validate.Check(blockTx); err != nil {
		c.evHandler("optimism: tx payload: %s", err)
		return sim.Tx{}, false
	}

	// Contract creations have no receiver to credit.
	if blockTx.To == "" {
		return sim.Tx{}, false
	}

	wei, err := hexutil.DecodeBig(blockTx.Value)
	if err != nil {
		c.evHandler("optimism: tx %s: value %q: %s", blockTx.Hash, blockTx.Value, err)
		return sim.Tx{}, false
	}

	// Zero value transactions carry nothing to move between balances.
	if wei.Sign() == 0 {
		return sim.Tx{}, false
	}

	gasUsed, err := hexutil.DecodeUint64(blockTx.Gas)
	if err != nil {
		c.evHandler("optimism: tx %s: gas %q: %s", blockTx.Hash, blockTx.Gas, err)
		return sim.Tx{}, false
	}

	kind := sim.TxTransfer
	if blockTx.Input != "" && blockTx.Input != "0x" {
		kind = sim.TxContractCall
	}

	value, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()

	tx := sim.Tx{
		ID:    blockTx.Hash,
		From:  common.HexToAddress(blockTx.From),
		To:    common.HexToAddress(blockTx.To),
		Kind:  kind,
		Value: value,
		Gas:   gasUsed,
		Block: blockNumber,
	}

	return tx, true
}
