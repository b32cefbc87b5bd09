package encryption

import (
	"fmt"

	"themesync/internal/config"
	"themesync/internal/themesync"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (themesync.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return NewPlainEncryptor(), nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
