package fhe

import (
	"encoding/json"
	"errors"
	"io"
	"os"
)

// Params represents the scheme parameters that govern the noise model. The
// values are loaded once at startup and passed explicitly into every encrypt
// and operation call so no package carries ambient key or parameter state.
type Params struct {
	Scheme           string  `json:"scheme"`             // Name of the scheme being modeled.
	FreshNoiseBudget int     `json:"fresh_noise_budget"` // Bits of headroom on a fresh ciphertext.
	AddCost          int     `json:"add_cost"`           // Budget consumed by one homomorphic addition.
	MulCost          int     `json:"mul_cost"`           // Budget consumed by one homomorphic multiplication.
	MaxPlaintext     float64 `json:"max_plaintext"`      // Largest representable plaintext magnitude.
	Precision        float64 `json:"precision"`          // Fixed point encoding step.
}

// DefaultParams returns the parameter set used when no scheme file is
// provided. The costs are placeholders calibrated for analysis runs, not
// measurements of any concrete scheme's noise growth curve.
func DefaultParams() Params {
	return Params{
		Scheme:           "bfv-sim",
		FreshNoiseBudget: 120,
		AddCost:          2,
		MulCost:          24,
		MaxPlaintext:     1e9,
		Precision:        1e-6,
	}
}

// LoadParams opens and consumes the scheme parameters file.
func LoadParams(path string) (Params, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}

	var params Params
	if err := json.Unmarshal(content, &params); err != nil {
		return Params{}, err
	}

	if err := params.Validate(); err != nil {
		return Params{}, err
	}

	return params, nil
}

// WriteParams writes the parameter set as indented JSON, in the same shape
// LoadParams reads back.
func WriteParams(w io.Writer, p Params) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// Validate checks the parameter set describes a usable noise model.
func (p Params) Validate() error {
	switch {
	case p.FreshNoiseBudget <= 0:
		return errors.New("fresh noise budget must be positive")
	case p.AddCost <= 0 || p.MulCost <= 0:
		return errors.New("operation costs must be positive")
	case p.MulCost <= p.AddCost:
		return errors.New("multiplication cost must exceed addition cost")
	case p.MaxPlaintext <= 0:
		return errors.New("max plaintext must be positive")
	case p.Precision <= 0:
		return errors.New("precision must be positive")
	}

	return nil
}
