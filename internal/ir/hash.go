package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Algorithm names a digest function.
type Algorithm string

const (
	// SHA256 is the default; any third party can reproduce it with sha256sum.
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm validates an algorithm name. The empty string selects SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	}
	return "", fmt.Errorf("unknown hash algorithm %q (want sha256 or blake3)", name)
}

// Hasher computes content digests of scenario values.
//
// Digests are lowercase hex over the raw bytes with no domain prefix, so a
// receipt's hash can be recomputed from the receipt JSON alone.
type Hasher struct {
	algorithm Algorithm
}

// NewHasher returns a Hasher for alg.
func NewHasher(alg Algorithm) (Hasher, error) {
	alg, err := ParseAlgorithm(string(alg))
	if err != nil {
		return Hasher{}, err
	}
	return Hasher{algorithm: alg}, nil
}

// DefaultHasher returns a SHA-256 Hasher.
func DefaultHasher() Hasher {
	return Hasher{algorithm: SHA256}
}

// Algorithm returns the digest function in use.
func (h Hasher) Algorithm() Algorithm {
	if h.algorithm == "" {
		return SHA256
	}
	return h.algorithm
}

// HashBytes digests raw bytes.
func (h Hasher) HashBytes(data []byte) string {
	switch h.Algorithm() {
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// Hash digests a value. Strings are hashed directly over their UTF-8 bytes;
// every other value is hashed over its canonical JSON.
func (h Hasher) Hash(v any) (string, error) {
	if s, ok := v.(string); ok {
		return h.HashBytes([]byte(s)), nil
	}
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: failed to marshal: %w", err)
	}
	return h.HashBytes(canonical), nil
}

// MustHash is like Hash but panics on error.
// Only use in tests or when the value is known to be valid.
func (h Hasher) MustHash(v any) string {
	digest, err := h.Hash(v)
	if err != nil {
		panic(fmt.Sprintf("MustHash: %v", err))
	}
	return digest
}
