package testutil

import (
	"themesync/internal/encryption"
	"themesync/internal/themesync"
)

// NewTestEncryptor creates a deterministic, reversible encryptor for testing.
func NewTestEncryptor() themesync.Encryptor {
	return encryption.NewTestEncryptor()
}
