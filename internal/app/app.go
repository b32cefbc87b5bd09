package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"themesync/internal/config"
	"themesync/internal/database"
	"themesync/internal/encryption"
	"themesync/internal/fs"
	"themesync/internal/model"
	"themesync/internal/themesync"
	"themesync/internal/vault"
)

// ThemeApp is the application layer between the CLI/HTTP surfaces and
// themesync.Service. It constructs all dependencies from config, records
// mutating commands in the operation log, and on Close snapshots the
// metadata database to the first configured vault.
type ThemeApp struct {
	cfg       *config.Config
	store     *database.SQLStore
	vault     themesync.Vault // nil when no vault is configured
	encryptor themesync.Encryptor
	service   *themesync.Service
	op        *Operation
	logger    *slog.Logger
	logFile   *os.File
}

// deps are the collaborators NewThemeApp builds from config.
type deps struct {
	store     *database.SQLStore
	vault     themesync.Vault
	encryptor themesync.Encryptor
	scanner   themesync.Scanner
	clock     themesync.Clock
	idgen     themesync.IDGenerator
}

// NewThemeApp creates a fully wired ThemeApp from the given config.
// operation identifies the command being run (e.g. "Sync", "Activate").
// actor is recorded on every row a mutating command writes; when empty the
// configured actor is used. The caller must call Close when done.
func NewThemeApp(ctx context.Context, cfg *config.Config, operation, actor string) (*ThemeApp, error) {
	var v themesync.Vault
	if len(cfg.Vaults) > 0 {
		var err error
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := database.NewStoreFromConfig(ctx, cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	return newThemeApp(ctx, cfg, deps{
		store:     store,
		vault:     v,
		encryptor: enc,
		scanner:   fs.NewThemeScanner(cfg.Themes.Root, cfg.Themes.Ignore),
	}, operation, actor)
}

// newThemeApp takes ownership of d.store and closes it on failure.
func newThemeApp(ctx context.Context, cfg *config.Config, d deps, operation, actor string) (*ThemeApp, error) {
	store := d.store

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date (run `themesync db migrate`): %w", err)
	}

	// Refuse to write on top of a stale local database.
	if d.vault != nil {
		remoteVersion, err := d.vault.GetMetadataVersion(ctx, cfg.InstanceID, themesync.MetadataDatabase)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("checking remote metadata version: %w", err)
		}

		localMax, err := store.MaxOperationID(ctx)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("checking local metadata version: %w", err)
		}

		if remoteVersion > localMax {
			store.Close()
			return nil, fmt.Errorf("local database is behind remote (local=%d, remote=%d): run `themesync db restore`", localMax, remoteVersion)
		}
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	if actor == "" {
		actor = cfg.Actor
	}

	svc := themesync.NewService(store, d.scanner, &slogAdapter{l: logger}, d.clock, d.idgen)

	return &ThemeApp{
		cfg:       cfg,
		store:     store,
		vault:     d.vault,
		encryptor: d.encryptor,
		service:   svc,
		op:        NewOperation(operation, actor),
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// Service exposes the wired service for long-running surfaces.
func (a *ThemeApp) Service() *themesync.Service {
	return a.service
}

// Store exposes the version store. It stays owned by the app.
func (a *ThemeApp) Store() *database.SQLStore {
	return a.store
}

// Logger returns the app's structured logger.
func (a *ThemeApp) Logger() *slog.Logger {
	return a.logger
}

// Actor returns the identity mutating commands are attributed to.
func (a *ThemeApp) Actor() string {
	return a.op.Actor
}

// persistOperation saves the operation to the database, giving it an
// auto-increment ID. Only mutating commands call it.
func (a *ThemeApp) persistOperation(ctx context.Context, params map[string]string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = encodeParameters(params)
	dbOp, err := a.store.CreateOperation(ctx, a.op.Operation, a.op.Parameters, a.op.Actor)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

func (a *ThemeApp) syncOptions(summary string) themesync.SyncOptions {
	return themesync.SyncOptions{Actor: a.op.Actor, Summary: summary}
}

// SyncAll syncs every theme under the configured root. The operation is
// marked failed if any theme failed.
func (a *ThemeApp) SyncAll(ctx context.Context, summary string) ([]*themesync.SyncReport, error) {
	if err := a.persistOperation(ctx, map[string]string{"summary": summary}); err != nil {
		return nil, err
	}
	reports, err := a.service.SyncAll(ctx, a.syncOptions(summary))
	if err != nil {
		return nil, a.op.Fail(err)
	}
	for i, r := range reports {
		if r.Failed() && errors.Is(r.Err, themesync.ErrConflict) {
			reports[i] = a.resync(ctx, r.Theme, summary)
		}
		if reports[i].Failed() {
			a.op.Status = "error"
		}
	}
	return reports, nil
}

// resync retries one theme of a SyncAll pass that lost a lock race. The
// first attempt already happened inside SyncAll.
func (a *ThemeApp) resync(ctx context.Context, name, summary string) *themesync.SyncReport {
	var report *themesync.SyncReport
	err := waitBackoff(ctx, 1)
	if err == nil {
		err = retryConflicts(ctx, conflictAttempts-1, func() error {
			var err error
			report, err = a.service.Sync(ctx, name, a.syncOptions(summary))
			return err
		})
	}
	if err != nil {
		a.logger.Warn("theme sync failed after retries", "theme", name, "error", err)
		return &themesync.SyncReport{Theme: name, Err: err, Error: err.Error()}
	}
	return report
}

// Sync syncs one theme from its directory under the configured root,
// retrying transactions that lost a lock race.
func (a *ThemeApp) Sync(ctx context.Context, name, summary string) (*themesync.SyncReport, error) {
	if err := a.persistOperation(ctx, map[string]string{"theme": name, "summary": summary}); err != nil {
		return nil, err
	}
	var report *themesync.SyncReport
	err := retryConflicts(ctx, conflictAttempts, func() error {
		var err error
		report, err = a.service.Sync(ctx, name, a.syncOptions(summary))
		return err
	})
	return report, a.op.Fail(err)
}

// SyncDir syncs one theme from an explicit directory.
func (a *ThemeApp) SyncDir(ctx context.Context, name, rawDir, summary string) (*themesync.SyncReport, error) {
	dir, err := filepath.Abs(rawDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if err := a.persistOperation(ctx, map[string]string{"theme": name, "dir": dir, "summary": summary}); err != nil {
		return nil, err
	}
	var report *themesync.SyncReport
	err = retryConflicts(ctx, conflictAttempts, func() error {
		var err error
		report, err = a.service.SyncDir(ctx, name, dir, a.syncOptions(summary))
		return err
	})
	return report, a.op.Fail(err)
}

// Activate makes the named theme the active one.
func (a *ThemeApp) Activate(ctx context.Context, name string) (themesync.ActivationResult, error) {
	if err := a.persistOperation(ctx, map[string]string{"theme": name}); err != nil {
		return "", err
	}
	var result themesync.ActivationResult
	err := retryConflicts(ctx, conflictAttempts, func() error {
		var err error
		result, err = a.service.Activate(ctx, name, a.op.Actor)
		return err
	})
	return result, a.op.Fail(err)
}

// Publish makes a version of the theme live.
func (a *ThemeApp) Publish(ctx context.Context, name, versionID string) (*model.ThemeVersion, error) {
	if err := a.persistOperation(ctx, map[string]string{"theme": name, "version": versionID}); err != nil {
		return nil, err
	}
	var v *model.ThemeVersion
	err := retryConflicts(ctx, conflictAttempts, func() error {
		var err error
		v, err = a.service.Publish(ctx, name, versionID, a.op.Actor)
		return err
	})
	return v, a.op.Fail(err)
}

// Preview marks a version of the theme as the preview candidate.
func (a *ThemeApp) Preview(ctx context.Context, name, versionID string) (*model.ThemeVersion, error) {
	if err := a.persistOperation(ctx, map[string]string{"theme": name, "version": versionID}); err != nil {
		return nil, err
	}
	var v *model.ThemeVersion
	err := retryConflicts(ctx, conflictAttempts, func() error {
		var err error
		v, err = a.service.Preview(ctx, name, versionID, a.op.Actor)
		return err
	})
	return v, a.op.Fail(err)
}

// Read-only commands pass straight through to the service.

func (a *ThemeApp) Themes(ctx context.Context) ([]*model.Theme, error) {
	return a.service.Themes(ctx)
}

func (a *ThemeApp) Theme(ctx context.Context, name string) (*model.Theme, error) {
	return a.service.Theme(ctx, name)
}

func (a *ThemeApp) ActiveTheme(ctx context.Context) (*model.Theme, error) {
	return a.service.ActiveTheme(ctx)
}

func (a *ThemeApp) ThemeVersions(ctx context.Context, name string) ([]*model.ThemeVersion, error) {
	return a.service.ThemeVersions(ctx, name)
}

func (a *ThemeApp) BatchFiles(ctx context.Context, name, versionID string) ([]*model.ThemeFileVersion, error) {
	return a.service.BatchFiles(ctx, name, versionID)
}

func (a *ThemeApp) Drift(ctx context.Context, name string) (*themesync.DriftReport, error) {
	return a.service.Drift(ctx, name)
}

// Read returns the current content of a file, or a specific version when
// versionNumber is positive.
func (a *ThemeApp) Read(ctx context.Context, name, path string, versionNumber int) ([]byte, error) {
	if versionNumber > 0 {
		return a.service.ReadVersion(ctx, name, path, versionNumber)
	}
	return a.service.Read(ctx, name, path)
}

func (a *ThemeApp) FileHistory(ctx context.Context, name, path string) ([]*themesync.FileRevision, error) {
	return a.service.FileHistory(ctx, name, path)
}

func (a *ThemeApp) Tree(ctx context.Context, name string) (*themesync.TreeNode, error) {
	return a.service.Tree(ctx, name)
}

// History returns the most recent operations, newest first.
func (a *ThemeApp) History(ctx context.Context, limit int) ([]*model.Operation, error) {
	return a.store.ListOperations(ctx, limit)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the
// database and uploads it to the vault. Otherwise it just closes the database.
func (a *ThemeApp) Close() error {
	// Close runs after the command's context may have been cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var snapshot string
	version := a.op.ID
	if a.op.Persisted() {
		if err := a.store.FinishOperation(ctx, a.op.ID, a.op.Status); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}

		if a.vault != nil && a.store.Dialect() == "sqlite" {
			// A serve session records further operations after its own.
			if maxID, err := a.store.MaxOperationID(ctx); err == nil && maxID > version {
				version = maxID
			}
			path, err := a.snapshot(ctx)
			keep(err)
			snapshot = path
		}
	}

	if err := a.store.Close(); err != nil {
		keep(fmt.Errorf("closing database: %w", err))
	}

	if snapshot != "" {
		keep(a.uploadSnapshot(ctx, snapshot, version))
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// snapshot writes a consistent copy of the database to a temp file and
// returns its path.
func (a *ThemeApp) snapshot(ctx context.Context) (string, error) {
	dir, err := os.MkdirTemp("", "themesync-db-backup-")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	// VACUUM INTO refuses to overwrite, so the target must not exist yet.
	path := filepath.Join(dir, "snapshot.db")
	if err := a.store.BackupTo(ctx, path); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("backing up database: %w", err)
	}
	return path, nil
}

// uploadSnapshot encrypts the snapshot at path and uploads it to the vault
// with the given version.
func (a *ThemeApp) uploadSnapshot(ctx context.Context, path string, version int64) error {
	defer os.RemoveAll(filepath.Dir(path))

	encPath := path + ".enc"
	if err := encryptFile(a.encryptor, path, encPath); err != nil {
		return err
	}

	if err := putFile(ctx, a.vault, a.cfg.InstanceID, themesync.MetadataDatabase, encPath, version); err != nil {
		return err
	}

	a.logger.Info("database snapshot uploaded", "version", version)
	return nil
}

func encryptFile(enc themesync.Encryptor, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening db backup: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted db backup: %w", err)
	}
	if err := enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting db backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("writing encrypted db backup: %w", err)
	}
	return nil
}

// putFile uploads a local file to the vault as a named metadata item.
func putFile(ctx context.Context, v themesync.Vault, instanceID, name, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}

	if err := v.PutMetadata(ctx, instanceID, name, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading %s to vault: %w", name, err)
	}
	return nil
}
