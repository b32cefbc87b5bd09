package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"themesync/internal/config"
	"themesync/internal/encryption"
	"themesync/internal/themesync"
	"themesync/internal/vault"
)

// keyVersion is the vault version stored with the key files. Keys are
// written once per instance.
const keyVersion = 1

// SetupKeys generates the snapshot encryption key pair and, when a vault is
// configured, uploads both key files so a new machine can restore. The
// private key is stored passphrase-protected.
func SetupKeys(ctx context.Context, cfg *config.Config, passphrase string) error {
	if cfg.Encryption.Type != "age" {
		return fmt.Errorf("encryption type %q does not use keys", cfg.Encryption.Type)
	}

	var v themesync.Vault
	if len(cfg.Vaults) > 0 {
		var err error
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			return fmt.Errorf("creating vault: %w", err)
		}
	}

	return setupKeys(ctx, encryption.NewAgeEncryptor(cfg.Encryption), v, cfg.InstanceID, cfg.Encryption, passphrase)
}

func setupKeys(ctx context.Context, enc themesync.Encryptor, v themesync.Vault, instanceID string, keys config.EncryptionConfig, passphrase string) error {
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	if v == nil {
		return nil
	}

	if err := putFile(ctx, v, instanceID, themesync.MetadataPublicKey, keys.PublicKeyPath, keyVersion); err != nil {
		return err
	}
	return putFile(ctx, v, instanceID, themesync.MetadataPrivateKey, keys.PrivateKeyPath, keyVersion)
}

// fetchKeys downloads the key files for an instance from the vault into
// the configured key paths. Existing files are left alone.
func fetchKeys(ctx context.Context, v themesync.Vault, instanceID string, keys config.EncryptionConfig) error {
	items := []struct {
		name string
		path string
		perm os.FileMode
	}{
		{themesync.MetadataPublicKey, keys.PublicKeyPath, 0644},
		{themesync.MetadataPrivateKey, keys.PrivateKeyPath, 0600},
	}

	for _, item := range items {
		if _, err := os.Stat(item.path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(item.path), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
		if err := getFile(ctx, v, instanceID, item.name, item.path, item.perm); err != nil {
			return err
		}
	}
	return nil
}

// getFile downloads a named metadata item to path, replacing it atomically.
func getFile(ctx context.Context, v themesync.Vault, instanceID, name, path string, perm os.FileMode) error {
	tmp := path + ".download"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := v.GetMetadata(ctx, instanceID, name, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("downloading %s from vault: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing %s: %w", name, err)
	}
	return nil
}
