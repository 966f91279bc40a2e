// Package credential computes and verifies salted password digests.
//
// The digest is a single-pass SHA-256 chain, H(salt ++ H(password ++ H(salt))).
// It has no work factor and is kept bit-for-bit stable so stored digests stay
// verifiable; it is not a production password-hashing scheme.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

const (
	// SaltSize is the length in bytes of a freshly generated salt.
	SaltSize = 16
	// DigestSize is the length in bytes of a password digest.
	DigestSize = sha256.Size
)

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// ComputeDigest derives the digest for password under salt.
func ComputeDigest(salt []byte, password string) []byte {
	saltHash := sha256.Sum256(salt)

	inner := make([]byte, 0, len(password)+len(saltHash))
	inner = append(inner, password...)
	inner = append(inner, saltHash[:]...)
	innerHash := sha256.Sum256(inner)

	outer := make([]byte, 0, len(salt)+len(innerHash))
	outer = append(outer, salt...)
	outer = append(outer, innerHash[:]...)
	digest := sha256.Sum256(outer)
	return digest[:]
}

// Verify reports whether candidate hashes to digest under salt.
func Verify(salt, digest []byte, candidate string) bool {
	return subtle.ConstantTimeCompare(ComputeDigest(salt, candidate), digest) == 1
}
