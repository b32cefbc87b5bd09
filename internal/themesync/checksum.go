package themesync

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the SHA-256 checksum of content as a lowercase hex string.
// The same bytes always yield the same digest, wherever they were read from.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
