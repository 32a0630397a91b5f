// Package tokens generates and hashes single-use download secrets.
// Only the SHA-256 digest is ever persisted; a leak of the token table does
// not expose a usable download capability.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// NewDownloadToken returns a fresh raw secret (256 bits, URL-safe base64)
// and its hex-encoded SHA-256 digest for storage.
func NewDownloadToken() (raw string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, Hash(raw), nil
}

// Hash recomputes the storage digest for a presented raw secret.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
