// Package privacy produces deterministic one-way digests of account
// identifiers so logs and events can be correlated without ever carrying the
// identifier itself.
package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const digestLen = 16

// Hasher digests identifiers. The zero value is usable and falls back to an
// unkeyed hash; a keyed Hasher resists offline dictionary attacks on the
// emitted digests.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher keyed with key. An empty key selects the
// unkeyed fallback.
func NewHasher(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	out := make([]byte, len(key))
	copy(out, key)
	return Hasher{key: out}
}

// Digest returns a fixed-length hex digest of identifier. Deterministic per
// identifier, not reversible.
func (h Hasher) Digest(identifier string) string {
	if identifier == "" {
		return ""
	}

	var sum [sha256.Size]byte
	if len(h.key) == 0 {
		sum = sha256.Sum256([]byte(identifier))
	} else {
		mac := hmac.New(sha256.New, h.key)
		mac.Write([]byte(identifier))
		mac.Sum(sum[:0])
	}

	return hex.EncodeToString(sum[:])[:digestLen]
}
