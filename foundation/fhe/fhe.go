// Package fhe models fully homomorphic encryption over scalar values for the
// purpose of noise and cost accounting. Ciphertexts carry their own noise
// budget and size class so the accounting never depends on hidden scheme
// state. The package estimates noise behavior, it does not provide
// cryptographic security.
package fhe

import (
	"math"

	"github.com/google/uuid"
)

// Size classes assigned to ciphertexts based on the magnitude of the
// plaintext they encode. Multiplication grows the result one class.
const (
	sizeClassSmall  = 4096
	sizeClassMedium = 8192
	sizeClassLarge  = 16384
	sizeClassMax    = 32768
)

// Secret represents the secret material a party encrypts and decrypts under.
type Secret struct {
	keyID string
}

// NewSecret constructs fresh secret material with a unique key id.
func NewSecret() Secret {
	return Secret{keyID: uuid.NewString()}
}

// KeyID returns the identifier of the key this secret belongs to.
func (s Secret) KeyID() string {
	return s.keyID
}

// Ciphertext is an encrypted scalar together with the metadata the
// accounting engine needs. The value handle is opaque: nothing outside this
// package can observe or depend on it.
type Ciphertext struct {
	handle      int64 // Fixed point encoding of the underlying value.
	keyID       string
	noiseBudget int
	sizeClass   int
}

// NoiseBudget returns the remaining noise headroom in bits.
func (c Ciphertext) NoiseBudget() int {
	return c.noiseBudget
}

// SizeClass returns the modeled ciphertext size in bytes.
func (c Ciphertext) SizeClass() int {
	return c.sizeClass
}

// Exhausted reports whether the ciphertext has no noise budget left and must
// not be used in further homomorphic operations.
func (c Ciphertext) Exhausted() bool {
	return c.noiseBudget <= 0
}

// =============================================================================

// Encrypt encodes the plaintext under the given secret and scheme
// parameters. The fresh ciphertext starts with the scheme's maximum noise
// budget and a size class derived deterministically from the plaintext
// magnitude.
func Encrypt(p Params, s Secret, plaintext float64) (Ciphertext, error) {
	if math.Abs(plaintext) > p.MaxPlaintext || math.IsNaN(plaintext) || math.IsInf(plaintext, 0) {
		return Ciphertext{}, &EncodingError{Plaintext: plaintext, Max: p.MaxPlaintext}
	}

	ct := Ciphertext{
		handle:      encode(p, plaintext),
		keyID:       s.keyID,
		noiseBudget: p.FreshNoiseBudget,
		sizeClass:   sizeClassFor(plaintext),
	}

	return ct, nil
}

// Decrypt recovers the plaintext from the ciphertext. If the noise budget is
// exhausted the decryption is still performed for measurement purposes but
// the recovered value is returned inside a NoiseExhaustedError, flagged
// invalid. A secret for the wrong key fails with a KeyMismatchError.
func Decrypt(p Params, s Secret, ct Ciphertext) (float64, error) {
	if ct.keyID != s.keyID {
		return 0, &KeyMismatchError{WantKeyID: ct.keyID, GotKeyID: s.keyID}
	}

	value := decode(p, ct.handle)

	if ct.Exhausted() {
		return 0, &NoiseExhaustedError{Op: "decrypt", Budget: ct.noiseBudget, Value: value}
	}

	return value, nil
}

// =============================================================================

// encode converts a plaintext into the scheme's fixed point representation.
func encode(p Params, plaintext float64) int64 {
	return int64(math.Round(plaintext / p.Precision))
}

// decode converts a fixed point representation back into a plaintext.
func decode(p Params, handle int64) float64 {
	return float64(handle) * p.Precision
}

// sizeClassFor assigns a deterministic size class from plaintext magnitude.
func sizeClassFor(plaintext float64) int {
	switch abs := math.Abs(plaintext); {
	case abs < 1e3:
		return sizeClassSmall
	case abs < 1e6:
		return sizeClassMedium
	default:
		return sizeClassLarge
	}
}

// growSizeClass bumps a size class one step, capped at the largest class.
func growSizeClass(sizeClass int) int {
	if sizeClass >= sizeClassMax {
		return sizeClassMax
	}
	return sizeClass * 2
}
