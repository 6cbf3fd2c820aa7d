// Package checksum computes SHA-256 fingerprints used to prove round-trip
// fidelity. Every document stores the digest of its original upload
// permanently; every decompression is checked against it.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// Digest returns the hex-encoded SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestReader returns the hex-encoded SHA-256 of everything readable from r.
func DigestReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to read for digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether data digests to expected.
func Verify(data []byte, expected string) bool {
	actual := Digest(data)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1
}
