package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"themesync/internal/config"
	"themesync/internal/database"
	"themesync/internal/encryption"
	"themesync/internal/themesync"
	"themesync/internal/vault"
)

// RestoreDatabase replaces the local SQLite database with the latest
// snapshot from the first configured vault and returns the snapshot's
// version. passphrase unlocks the private key when snapshots are
// encrypted; key files missing locally are fetched from the vault first.
func RestoreDatabase(ctx context.Context, cfg *config.Config, passphrase string) (int64, error) {
	if cfg.Database.Type != "sqlite" {
		return 0, fmt.Errorf("restore is only supported for sqlite databases, not %q", cfg.Database.Type)
	}
	if len(cfg.Vaults) == 0 {
		return 0, fmt.Errorf("no vaults configured")
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
	if err != nil {
		return 0, fmt.Errorf("creating vault: %w", err)
	}

	if cfg.Encryption.Type == "age" {
		if err := fetchKeys(ctx, v, cfg.InstanceID, cfg.Encryption); err != nil {
			return 0, err
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}

	return restoreDatabase(ctx, v, enc, cfg.InstanceID, passphrase, database.SQLitePath(cfg.Database, cfg.InstanceID))
}

func restoreDatabase(ctx context.Context, v themesync.Vault, enc themesync.Encryptor, instanceID, passphrase, dest string) (int64, error) {
	version, err := v.GetMetadataVersion(ctx, instanceID, themesync.MetadataDatabase)
	if err != nil {
		return 0, fmt.Errorf("checking remote metadata version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("%w: no database snapshot in vault for instance %s", themesync.ErrNotFound, instanceID)
	}

	decryptCtx, err := enc.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("creating data directory: %w", err)
	}

	tmp := dest + ".restore"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("creating restore file: %w", err)
	}

	// Pipe vault output straight into the decryptor.
	pr, pw := io.Pipe()
	vaultErrCh := make(chan error, 1)
	go func() {
		err := v.GetMetadata(ctx, instanceID, themesync.MetadataDatabase, pw)
		pw.CloseWithError(err)
		vaultErrCh <- err
	}()

	decryptErr := decryptCtx.Decrypt(pr, f)
	pr.CloseWithError(decryptErr)
	vaultErr := <-vaultErrCh
	closeErr := f.Close()

	switch {
	case vaultErr != nil:
		os.Remove(tmp)
		return 0, fmt.Errorf("downloading snapshot: %w", vaultErr)
	case decryptErr != nil:
		os.Remove(tmp)
		return 0, fmt.Errorf("decrypting snapshot: %w", decryptErr)
	case closeErr != nil:
		os.Remove(tmp)
		return 0, fmt.Errorf("writing snapshot: %w", closeErr)
	}

	// Stale WAL files would be replayed on top of the restored database.
	os.Remove(dest + "-wal")
	os.Remove(dest + "-shm")

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("installing restored database: %w", err)
	}
	return version, nil
}
