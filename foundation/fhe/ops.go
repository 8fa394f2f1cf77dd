package fhe

import "math"

// Op identifies a homomorphic operation kind. The set is closed so the
// operation trace and the gas weight table stay exhaustive.
type Op string

// Set of homomorphic operations the library provides.
const (
	OpAdd   Op = "add"
	OpSub   Op = "sub"
	OpMul   Op = "mul"
	OpCmpEq Op = "cmpeq"
)

// Add performs homomorphic addition. The result's budget is the minimum of
// the operand budgets less the scheme's addition cost.
func Add(p Params, c1 Ciphertext, c2 Ciphertext) (Ciphertext, error) {
	if err := checkOperands(OpAdd, c1, c2); err != nil {
		return Ciphertext{}, err
	}

	ct := Ciphertext{
		handle:      encode(p, decode(p, c1.handle)+decode(p, c2.handle)),
		keyID:       c1.keyID,
		noiseBudget: clampBudget(minBudget(c1, c2) - p.AddCost),
		sizeClass:   maxSizeClass(c1, c2),
	}

	return ct, nil
}

// Sub performs homomorphic subtraction, modeled as the addition of a negated
// value. It consumes the same budget as Add.
func Sub(p Params, c1 Ciphertext, c2 Ciphertext) (Ciphertext, error) {
	if err := checkOperands(OpSub, c1, c2); err != nil {
		return Ciphertext{}, err
	}

	ct := Ciphertext{
		handle:      encode(p, decode(p, c1.handle)-decode(p, c2.handle)),
		keyID:       c1.keyID,
		noiseBudget: clampBudget(minBudget(c1, c2) - p.AddCost),
		sizeClass:   maxSizeClass(c1, c2),
	}

	return ct, nil
}

// Mul performs homomorphic multiplication. Multiplication dominates the noise
// growth of any real scheme, so its budget cost is much larger than the
// addition cost and the result grows one size class.
func Mul(p Params, c1 Ciphertext, c2 Ciphertext) (Ciphertext, error) {
	if err := checkOperands(OpMul, c1, c2); err != nil {
		return Ciphertext{}, err
	}

	ct := Ciphertext{
		handle:      encode(p, decode(p, c1.handle)*decode(p, c2.handle)),
		keyID:       c1.keyID,
		noiseBudget: clampBudget(minBudget(c1, c2) - p.MulCost),
		sizeClass:   growSizeClass(maxSizeClass(c1, c2)),
	}

	return ct, nil
}

// CmpEq tests two ciphertexts for equality via a squared difference,
// yielding a boolean class ciphertext that decrypts to 1 when the operands
// are equal and 0 otherwise. It is a fixed composition of one subtraction
// and one multiplication, so its budget cost is the sum of those costs.
func CmpEq(p Params, c1 Ciphertext, c2 Ciphertext) (Ciphertext, error) {
	diff, err := Sub(p, c1, c2)
	if err != nil {
		return Ciphertext{}, err
	}

	sq, err := Mul(p, diff, diff)
	if err != nil {
		return Ciphertext{}, err
	}

	var equal float64
	if math.Abs(decode(p, diff.handle)) < p.Precision {
		equal = 1
	}

	ct := Ciphertext{
		handle:      encode(p, equal),
		keyID:       sq.keyID,
		noiseBudget: sq.noiseBudget,
		sizeClass:   sizeClassSmall,
	}

	return ct, nil
}

// =============================================================================

// checkOperands enforces the hard boundary on homomorphic operations: an
// exhausted input or a cross key pair fails before any compute is attempted.
func checkOperands(op Op, c1 Ciphertext, c2 Ciphertext) error {
	if c1.Exhausted() {
		return &NoiseExhaustedError{Op: string(op), Budget: c1.noiseBudget}
	}
	if c2.Exhausted() {
		return &NoiseExhaustedError{Op: string(op), Budget: c2.noiseBudget}
	}
	if c1.keyID != c2.keyID {
		return &KeyMismatchError{WantKeyID: c1.keyID, GotKeyID: c2.keyID}
	}

	return nil
}

// minBudget returns the smaller of the operand budgets.
func minBudget(c1 Ciphertext, c2 Ciphertext) int {
	if c2.noiseBudget < c1.noiseBudget {
		return c2.noiseBudget
	}
	return c1.noiseBudget
}

// maxSizeClass returns the larger of the operand size classes.
func maxSizeClass(c1 Ciphertext, c2 Ciphertext) int {
	if c2.sizeClass > c1.sizeClass {
		return c2.sizeClass
	}
	return c1.sizeClass
}

// clampBudget keeps a budget from going negative so exhaustion is a single
// well defined state.
func clampBudget(budget int) int {
	if budget < 0 {
		return 0
	}
	return budget
}
