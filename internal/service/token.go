package service

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TokenGenerator produces the raw token for a new API key. Implementations
// may vary the token shape by environment or key type.
type TokenGenerator interface {
	Generate(environment, keyType string, sizeBytes int) (string, error)
}

// TokenGeneratorFunc adapts a function to the TokenGenerator interface.
type TokenGeneratorFunc func(environment, keyType string, sizeBytes int) (string, error)

func (f TokenGeneratorFunc) Generate(environment, keyType string, sizeBytes int) (string, error) {
	return f(environment, keyType, sizeBytes)
}

// Base62Generator is the default TokenGenerator: sizeBytes of CSPRNG output
// rendered in base62 at a fixed length, so every token for a given size is
// the same width regardless of leading zero bytes. 16 bytes yields 22
// characters. Environment and key type do not influence the token.
type Base62Generator struct{}

func (Base62Generator) Generate(_, _ string, sizeBytes int) (string, error) {
	return GenerateToken(sizeBytes)
}

// GenerateToken returns a base62 token carrying sizeBytes of entropy.
func GenerateToken(sizeBytes int) (string, error) {
	if sizeBytes <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", sizeBytes)
	}

	buf := make([]byte, sizeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return encodeBase62(buf, base62Len(sizeBytes)), nil
}

// base62Len is the number of base62 digits needed to represent any value of
// sizeBytes bytes.
func base62Len(sizeBytes int) int {
	return int(math.Ceil(float64(sizeBytes) * 8 / math.Log2(62)))
}

func encodeBase62(buf []byte, width int) string {
	n := new(big.Int).SetBytes(buf)
	base := big.NewInt(62)
	mod := new(big.Int)

	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		if n.Sign() == 0 {
			// Left-pad so short values still produce fixed-width tokens.
			out[i] = base62Alphabet[0]
			continue
		}
		n.DivMod(n, base, mod)
		out[i] = base62Alphabet[mod.Int64()]
	}
	return string(out)
}
