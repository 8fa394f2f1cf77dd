package optimism

import (
	"encoding/json"
)

// proxyResponse is the envelope the Etherscan proxy module wraps every
// JSON-RPC passthrough result in.
type proxyResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
}

// Block represents the block fields the engine consumes. All quantities are
// hex encoded per the JSON-RPC wire format.
type Block struct {
	Number        string    `json:"number" validate:"required"`
	Size          string    `json:"size" validate:"required"`
	Timestamp     string    `json:"timestamp" validate:"required"`
	BaseFeePerGas string    `json:"baseFeePerGas"`
	Transactions  []BlockTx `json:"transactions"`
}

// BlockTx represents the transaction fields the engine consumes.
type BlockTx struct {
	Hash  string `json:"hash" validate:"required"`
	From  string `json:"from" validate:"required"`
	To    string `json:"to"`
	Value string `json:"value" validate:"required"`
	Gas   string `json:"gas" validate:"required"`
	Input string `json:"input"`
}
