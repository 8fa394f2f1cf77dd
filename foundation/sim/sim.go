// Package sim is the core API for simulating encrypted state transitions and
// implements the noise accounting over a batch of chain transactions. Party
// balances live as ciphertexts and every transaction's arithmetic is applied
// homomorphically, producing an operation trace for the downstream gas
// estimation.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fhesim/fhesim/foundation/bench"
	"github.com/fhesim/fhesim/foundation/fhe"
)

// EventHandler defines a function that is called when events occur in the
// processing of transactions.
type EventHandler func(v string, args ...any)

// contractScale is the plaintext scaling factor a contract call applies to
// the callee's storage value, mirroring the recompute a call performs.
const contractScale = 1.0

// =============================================================================

// TxResult carries the outcome of simulating one transaction.
type TxResult struct {
	Tx         Tx
	Status     Status
	Trace      Trace
	NoiseFloor int
	Err        error
}

// Config represents the configuration required to construct a Simulator.
type Config struct {
	Params    fhe.Params
	Secret    fhe.Secret
	Recorder  *bench.Recorder
	EvHandler EventHandler
}

// Simulator owns the encrypted party state for the duration of one batch run.
// Transactions are applied strictly in order; the simulator is not safe for
// concurrent use and does not need to be.
type Simulator struct {
	params    fhe.Params
	secret    fhe.Secret
	recorder  *bench.Recorder
	evHandler EventHandler

	state     map[common.Address]fhe.Ciphertext
	aggregate fhe.Ciphertext
}

// New constructs a Simulator with an empty party state and an encrypted
// zero aggregate for the batch total.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("validating params: %w", err)
	}
	if cfg.Recorder == nil {
		return nil, errors.New("recorder is required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	aggregate, err := fhe.Encrypt(cfg.Params, cfg.Secret, 0)
	if err != nil {
		return nil, fmt.Errorf("encrypting aggregate seed: %w", err)
	}

	s := Simulator{
		params:    cfg.Params,
		secret:    cfg.Secret,
		recorder:  cfg.Recorder,
		evHandler: ev,
		state:     make(map[common.Address]fhe.Ciphertext),
		aggregate: aggregate,
	}

	return &s, nil
}

// Seed encrypts an initial balance for a party before the batch runs. Under
// encryption a balance can never be inspected, so seeding is the only way a
// run starts from known state.
func (s *Simulator) Seed(party common.Address, value float64) error {
	ct, err := s.encrypt("seed", value)
	if err != nil {
		return err
	}

	s.state[party] = ct
	s.evHandler("sim: party %s: seeded", party.Hex())
	return nil
}

// Run simulates the batch of transactions in order. A failed transaction is
// recorded and the batch continues; a key mismatch indicates a setup bug and
// aborts the run.
func (s *Simulator) Run(ctx context.Context, txs []Tx) ([]TxResult, error) {
	results := make([]TxResult, 0, len(txs))

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := s.simulateTx(tx)
		results = append(results, result)

		if result.Err != nil {
			var keyErr *fhe.KeyMismatchError
			if errors.As(result.Err, &keyErr) {
				return results, fmt.Errorf("tx %s: %w", tx.ID, result.Err)
			}

			s.evHandler("sim: tx %s: failed: %s", tx.ID, result.Err)
			continue
		}

		s.evHandler("sim: tx %s: committed: noise floor %d", tx.ID, result.NoiseFloor)
	}

	return results, nil
}

// FinalStates decrypts the current balance of every party. Parties whose
// ciphertext is exhausted are omitted; decryption is still measured for them.
func (s *Simulator) FinalStates() map[common.Address]float64 {
	finals := make(map[common.Address]float64, len(s.state))

	for party, ct := range s.state {
		var value float64
		err := s.recorder.Measure(bench.StageDecrypt, party.Hex(), func() error {
			var err error
			value, err = fhe.Decrypt(s.params, s.secret, ct)
			return err
		})
		if err != nil {
			s.evHandler("sim: party %s: final decrypt: %s", party.Hex(), err)
			continue
		}

		finals[party] = value
	}

	return finals
}

// AggregateTotal decrypts the running encrypted total of all committed
// transaction values.
func (s *Simulator) AggregateTotal() (float64, error) {
	var value float64
	err := s.recorder.Measure(bench.StageDecrypt, "aggregate", func() error {
		var err error
		value, err = fhe.Decrypt(s.params, s.secret, s.aggregate)
		return err
	})

	return value, err
}

// =============================================================================

// simulateTx drives one transaction through the state machine:
// Pending -> Encrypting -> Computing -> Finalizing -> {Committed, Failed}.
// Staged ciphertexts are applied to the party state all or nothing.
func (s *Simulator) simulateTx(tx Tx) TxResult {
	result := TxResult{
		Tx:     tx,
		Status: StatusPending,
	}

	err := s.recorder.Measure(bench.StageTransition, tx.ID, func() error {

		// Pending: make sure both parties exist in the state, creating a
		// fresh zero balance ciphertext on first sight.
		for _, party := range []common.Address{tx.From, tx.To} {
			if err := s.ensureParty(tx.ID, party); err != nil {
				return err
			}
		}

		// Encrypting: bring the transaction amount into ciphertext form.
		result.Status = StatusEncrypting
		amount, err := s.encrypt(tx.ID, tx.Value)
		if err != nil {
			return err
		}

		// Computing: execute the operation sequence for the transaction
		// kind, staging new ciphertexts without touching the party state.
		result.Status = StatusComputing
		staged, err := s.compute(&result, tx, amount)
		if err != nil {
			return err
		}

		// Finalizing: commit the staged ciphertexts and fold the amount
		// into the encrypted batch aggregate. The fold is batch accounting,
		// not part of the transaction's operation sequence, so it is not
		// recorded in the trace.
		result.Status = StatusFinalizing
		var aggregate fhe.Ciphertext
		err = s.recorder.Measure(bench.StageOp, tx.ID, func() error {
			var err error
			aggregate, err = fhe.Add(s.params, s.aggregate, amount)
			return err
		})
		if err != nil {
			return err
		}

		for party, ct := range staged {
			s.state[party] = ct
		}
		s.aggregate = aggregate

		result.Status = StatusCommitted
		return nil
	})

	result.NoiseFloor = result.Trace.NoiseFloor(s.params.FreshNoiseBudget)

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
	}

	return result
}

// compute maps the transaction kind to its homomorphic operation sequence
// and returns the staged party updates. Each operation reads the staged
// balance when one exists so a sequence over the same party, such as a
// self transfer, sees the result of the previous step rather than the
// pre-state value.
func (s *Simulator) compute(result *TxResult, tx Tx, amount fhe.Ciphertext) (map[common.Address]fhe.Ciphertext, error) {
	staged := make(map[common.Address]fhe.Ciphertext)

	balance := func(party common.Address) fhe.Ciphertext {
		if ct, exists := staged[party]; exists {
			return ct
		}
		return s.state[party]
	}

	switch tx.Kind {
	case TxTransfer:
		newSender, err := s.op(result, tx.ID, fhe.OpSub, balance(tx.From), amount)
		if err != nil {
			return nil, err
		}
		staged[tx.From] = newSender

		newReceiver, err := s.op(result, tx.ID, fhe.OpAdd, balance(tx.To), amount)
		if err != nil {
			return nil, err
		}
		staged[tx.To] = newReceiver

		return staged, nil

	case TxContractCall:
		newSender, err := s.op(result, tx.ID, fhe.OpSub, balance(tx.From), amount)
		if err != nil {
			return nil, err
		}
		staged[tx.From] = newSender

		credited, err := s.op(result, tx.ID, fhe.OpAdd, balance(tx.To), amount)
		if err != nil {
			return nil, err
		}
		staged[tx.To] = credited

		// The call recomputes the callee's storage value, which costs a
		// ciphertext multiplication.
		scale, err := s.encrypt(tx.ID, contractScale)
		if err != nil {
			return nil, err
		}
		newReceiver, err := s.op(result, tx.ID, fhe.OpMul, credited, scale)
		if err != nil {
			return nil, err
		}
		staged[tx.To] = newReceiver

		return staged, nil
	}

	return nil, fmt.Errorf("unknown transaction kind %q", tx.Kind)
}

// ensureParty creates a fresh zero balance ciphertext for a party on first
// sight.
func (s *Simulator) ensureParty(txID string, party common.Address) error {
	if _, exists := s.state[party]; exists {
		return nil
	}

	zero, err := s.encrypt(txID, 0)
	if err != nil {
		return err
	}

	s.state[party] = zero
	s.evHandler("sim: party %s: created with zero balance", party.Hex())
	return nil
}

// encrypt wraps fhe.Encrypt with benchmark capture.
func (s *Simulator) encrypt(txID string, value float64) (fhe.Ciphertext, error) {
	var ct fhe.Ciphertext
	err := s.recorder.Measure(bench.StageEncrypt, txID, func() error {
		var err error
		ct, err = fhe.Encrypt(s.params, s.secret, value)
		return err
	})

	return ct, err
}

// op applies one homomorphic operation with benchmark capture and appends
// the trace entry on success.
func (s *Simulator) op(result *TxResult, txID string, op fhe.Op, c1 fhe.Ciphertext, c2 fhe.Ciphertext) (fhe.Ciphertext, error) {
	var out fhe.Ciphertext
	err := s.recorder.Measure(bench.StageOp, txID, func() error {
		var err error
		switch op {
		case fhe.OpAdd:
			out, err = fhe.Add(s.params, c1, c2)
		case fhe.OpSub:
			out, err = fhe.Sub(s.params, c1, c2)
		case fhe.OpMul:
			out, err = fhe.Mul(s.params, c1, c2)
		case fhe.OpCmpEq:
			out, err = fhe.CmpEq(s.params, c1, c2)
		default:
			err = fmt.Errorf("unknown operation %q", op)
		}
		return err
	})
	if err != nil {
		return fhe.Ciphertext{}, err
	}

	result.Trace = append(result.Trace, TraceEntry{
		Op:           op,
		OperandSizes: []int{c1.SizeClass(), c2.SizeClass()},
		NoiseBudget:  out.NoiseBudget(),
	})

	return out, nil
}
