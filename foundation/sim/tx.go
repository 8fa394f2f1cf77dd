package sim

import (
	"github.com/ethereum/go-ethereum/common"
)

// TxKind determines which homomorphic operation sequence a transaction maps
// to. The set is closed so the gas weight table stays exhaustive.
type TxKind string

// Set of supported transaction kinds.
const (
	TxTransfer     TxKind = "transfer"
	TxContractCall TxKind = "contract-call"
)

// Tx is the read only transaction record retrieved from the chain. The gas
// value is the plaintext cost the chain reported and serves as the baseline
// for the overhead comparison.
type Tx struct {
	ID    string         `json:"id"`
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Kind  TxKind         `json:"kind"`
	Value float64        `json:"value"` // Denominated in ether.
	Gas   uint64         `json:"gas"`
	Block uint64         `json:"block"`
}

// Status represents where a transaction is in its simulation lifecycle.
type Status string

// Set of transaction simulation statuses.
const (
	StatusPending    Status = "pending"
	StatusEncrypting Status = "encrypting"
	StatusComputing  Status = "computing"
	StatusFinalizing Status = "finalizing"
	StatusCommitted  Status = "committed"
	StatusFailed     Status = "failed"
)
