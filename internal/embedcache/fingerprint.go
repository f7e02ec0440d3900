package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint is the SHA-256 digest of a chunk's content
type Fingerprint [sha256.Size]byte

// ComputeFingerprint hashes text. Identical text always yields the same fingerprint.
func ComputeFingerprint(text string) Fingerprint {
	return sha256.Sum256([]byte(text))
}

// String returns the lowercase hex encoding used in persisted stores
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes a hex fingerprint
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(raw) != len(f) {
		return f, fmt.Errorf("fingerprint has %d bytes, expected %d", len(raw), len(f))
	}
	copy(f[:], raw)
	return f, nil
}
