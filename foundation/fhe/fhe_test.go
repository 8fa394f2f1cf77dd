package fhe_test

import (
	"errors"
	"testing"

	"github.com/fhesim/fhesim/foundation/fhe"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_EncryptDecrypt(t *testing.T) {
	type table struct {
		name      string
		plaintext float64
	}

	tt := []table{
		{name: "balance", plaintext: 100},
		{name: "fraction", plaintext: 0.000125},
		{name: "negative", plaintext: -42.5},
		{name: "zero", plaintext: 0},
	}

	params := fhe.DefaultParams()
	secret := fhe.NewSecret()

	t.Log("Given the need to round trip plaintexts through encryption.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling the value %g.", testID, tst.plaintext)
			{
				ct, err := fhe.Encrypt(params, secret, tst.plaintext)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to encrypt the value: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to encrypt the value.", success, testID)

				if ct.NoiseBudget() != params.FreshNoiseBudget {
					t.Errorf("\t%s\tTest %d:\tShould start with the fresh noise budget: got %d, exp %d", failed, testID, ct.NoiseBudget(), params.FreshNoiseBudget)
				} else {
					t.Logf("\t%s\tTest %d:\tShould start with the fresh noise budget.", success, testID)
				}

				pt, err := fhe.Decrypt(params, secret, ct)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to decrypt the value: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to decrypt the value.", success, testID)

				if pt != tst.plaintext {
					t.Errorf("\t%s\tTest %d:\tShould get back the original plaintext: got %g, exp %g", failed, testID, pt, tst.plaintext)
				} else {
					t.Logf("\t%s\tTest %d:\tShould get back the original plaintext.", success, testID)
				}
			}
		}
	}
}

func Test_EncodingError(t *testing.T) {
	params := fhe.DefaultParams()
	secret := fhe.NewSecret()

	t.Log("Given the need to reject plaintexts outside the representable range.")
	{
		t.Logf("\tTest 0:\tWhen encrypting a value beyond the scheme maximum.")
		{
			_, err := fhe.Encrypt(params, secret, params.MaxPlaintext*2)
			if err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould not be able to encrypt the value.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not be able to encrypt the value.", success)

			var encErr *fhe.EncodingError
			if !errors.As(err, &encErr) {
				t.Errorf("\t%s\tTest 0:\tShould get an EncodingError: got %T", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould get an EncodingError.", success)
			}
		}
	}
}

func Test_KeyMismatch(t *testing.T) {
	params := fhe.DefaultParams()

	t.Log("Given the need to detect secret material for the wrong key.")
	{
		t.Logf("\tTest 0:\tWhen decrypting with a different party's secret.")
		{
			ct, err := fhe.Encrypt(params, fhe.NewSecret(), 10)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to encrypt the value: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to encrypt the value.", success)

			_, err = fhe.Decrypt(params, fhe.NewSecret(), ct)

			var keyErr *fhe.KeyMismatchError
			if !errors.As(err, &keyErr) {
				t.Fatalf("\t%s\tTest 0:\tShould get a KeyMismatchError: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get a KeyMismatchError.", success)
		}
	}
}

func Test_DecryptExhausted(t *testing.T) {
	params := fhe.DefaultParams()
	params.FreshNoiseBudget = params.AddCost
	secret := fhe.NewSecret()

	t.Log("Given the need to flag decryption of an exhausted ciphertext.")
	{
		t.Logf("\tTest 0:\tWhen draining the budget and then decrypting.")
		{
			c1, err := fhe.Encrypt(params, secret, 30)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to encrypt the first value: %v", failed, err)
			}
			c2, err := fhe.Encrypt(params, secret, 12)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to encrypt the second value: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to encrypt both values.", success)

			sum, err := fhe.Add(params, c1, c2)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to add while budget remains: %v", failed, err)
			}
			if !sum.Exhausted() {
				t.Fatalf("\t%s\tTest 0:\tShould have exhausted the budget: got %d", failed, sum.NoiseBudget())
			}
			t.Logf("\t%s\tTest 0:\tShould have exhausted the budget.", success)

			_, err = fhe.Decrypt(params, secret, sum)

			var noiseErr *fhe.NoiseExhaustedError
			if !errors.As(err, &noiseErr) {
				t.Fatalf("\t%s\tTest 0:\tShould get a NoiseExhaustedError: got %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get a NoiseExhaustedError.", success)

			// The value is still recovered for measurement, flagged invalid.
			if noiseErr.Value != 42 {
				t.Errorf("\t%s\tTest 0:\tShould still carry the recovered value: got %g, exp %g", failed, noiseErr.Value, 42.0)
			} else {
				t.Logf("\t%s\tTest 0:\tShould still carry the recovered value.", success)
			}
		}
	}
}
