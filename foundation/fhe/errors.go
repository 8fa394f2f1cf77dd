package fhe

import "fmt"

// EncodingError occurs when a plaintext falls outside the range the scheme
// can represent. It is local to a single encryption attempt.
type EncodingError struct {
	Plaintext float64
	Max       float64
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("plaintext %g outside representable range [%g, %g]", e.Plaintext, -e.Max, e.Max)
}

// NoiseExhaustedError occurs when a ciphertext's noise budget has reached
// zero. For decryption the value is still recovered for measurement purposes
// and carried in the error, flagged invalid by the error itself.
type NoiseExhaustedError struct {
	Op     string
	Budget int
	Value  float64
}

// Error implements the error interface.
func (e *NoiseExhaustedError) Error() string {
	return fmt.Sprintf("noise budget exhausted during %s: budget %d", e.Op, e.Budget)
}

// KeyMismatchError occurs when secret material does not correspond to the
// key a ciphertext was produced under. It indicates a setup bug.
type KeyMismatchError struct {
	WantKeyID string
	GotKeyID  string
}

// Error implements the error interface.
func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("key mismatch: ciphertext under key %q, secret for key %q", e.WantKeyID, e.GotKeyID)
}
