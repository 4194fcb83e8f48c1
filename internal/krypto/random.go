package krypto

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// HexAlphabet is the alphabet used for short names and display IDs.
const HexAlphabet = "0123456789abcdef"

// RandomString returns a string of length n with characters drawn uniformly
// from alphabet.
func RandomString(alphabet string, n int) (string, error) {
	if len(alphabet) == 0 || n <= 0 {
		return "", errors.New("empty alphabet or length")
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}

	return string(out), nil
}
