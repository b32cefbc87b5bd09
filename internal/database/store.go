package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"themesync/internal/database/migrations"
	"themesync/internal/model"
	"themesync/internal/themesync"
)

// ErrSnapshotUnsupported is returned by BackupTo on backends that cannot
// write a single-file copy of themselves.
var ErrSnapshotUnsupported = errors.New("database snapshots are only supported for sqlite")

// SQLStore implements themesync.Store over database/sql. The same code
// serves SQLite and Postgres; dialect differences live in dialect.
type SQLStore struct {
	db      *sql.DB
	queries *Queries
	d       dialect
	path    string // SQLite file path or ":memory:"
	dsn     string // Postgres DSN
}

// NewSQLiteStore opens a SQLite store. path can be a file path or ":memory:".
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, queries: newQueries(db, sqliteDialect), d: sqliteDialect, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing SQLite connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, queries: newQueries(db, sqliteDialect), d: sqliteDialect}
}

// NewPostgresStore opens a Postgres store through the pgx stdlib driver.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &SQLStore{db: db, queries: newQueries(db, postgresDialect), d: postgresDialect, dsn: dsn}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// Foreign keys are enforced, writers wait up to 5s for the lock, and every
// transaction begins IMMEDIATE so it holds the write lock from the start.
// An in-memory database is limited to one connection, since each new
// connection would otherwise see a fresh, empty database.
func OpenConnection(path string) (*sql.DB, error) {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	memory := path == ":memory:"
	if !memory {
		params += "&_journal_mode=WAL"
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+params)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// Dialect returns "sqlite" or "postgres".
func (s *SQLStore) Dialect() string {
	return s.d.name
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLStore) Path() string {
	return s.path
}

// Theme reads

func (s *SQLStore) FindTheme(ctx context.Context, name string) (*model.Theme, error) {
	return s.queries.GetTheme(ctx, name, false)
}

func (s *SQLStore) ListThemes(ctx context.Context) ([]*model.Theme, error) {
	return s.queries.ListThemes(ctx)
}

func (s *SQLStore) ActiveThemes(ctx context.Context) ([]*model.Theme, error) {
	return s.queries.ListActiveThemes(ctx)
}

// File reads

func (s *SQLStore) TrackedFiles(ctx context.Context, themeName string) (map[string]*model.TrackedFile, error) {
	return s.queries.TrackedFiles(ctx, themeName)
}

func (s *SQLStore) ListThemeFiles(ctx context.Context, themeName string) ([]*model.ThemeFile, error) {
	return s.queries.ListThemeFiles(ctx, themeName)
}

func (s *SQLStore) FindThemeFile(ctx context.Context, themeName, path string) (*model.ThemeFile, error) {
	return s.queries.GetThemeFile(ctx, themeName, path)
}

func (s *SQLStore) FindFileVersion(ctx context.Context, fileID string, versionNumber int) (*model.ThemeFileVersion, error) {
	return s.queries.GetFileVersion(ctx, fileID, versionNumber)
}

func (s *SQLStore) ListFileVersions(ctx context.Context, fileID string) ([]*model.ThemeFileVersion, error) {
	return s.queries.ListFileVersions(ctx, fileID)
}

// Release reads

func (s *SQLStore) ListThemeVersions(ctx context.Context, themeName string) ([]*model.ThemeVersion, error) {
	return s.queries.ListThemeVersions(ctx, themeName)
}

func (s *SQLStore) FindThemeVersion(ctx context.Context, id string) (*model.ThemeVersion, error) {
	return s.queries.GetThemeVersion(ctx, id)
}

func (s *SQLStore) ListBatchFileVersions(ctx context.Context, themeVersionID string) ([]*model.ThemeFileVersion, error) {
	return s.queries.ListBatchFileVersions(ctx, themeVersionID)
}

// WithTx runs fn in one transaction and commits only if fn succeeds. A
// cancelled ctx rolls the transaction back.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx themesync.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("starting transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{q: s.queries.WithTx(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrap("committing transaction", err)
	}
	return nil
}

// Operation log

func (s *SQLStore) CreateOperation(ctx context.Context, operation, parameters, actor string) (*model.Operation, error) {
	now := time.Now().UTC()
	id, err := s.queries.InsertOperation(ctx, operation, parameters, actor, "running", now)
	if err != nil {
		return nil, err
	}
	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Actor:      actor,
		Status:     "running",
		StartedAt:  now,
	}, nil
}

func (s *SQLStore) FinishOperation(ctx context.Context, id int64, status string) error {
	return s.queries.FinishOperation(ctx, id, status, time.Now().UTC())
}

func (s *SQLStore) ListOperations(ctx context.Context, limit int) ([]*model.Operation, error) {
	return s.queries.ListOperations(ctx, limit)
}

func (s *SQLStore) MaxOperationID(ctx context.Context) (int64, error) {
	return s.queries.MaxOperationID(ctx)
}

// Schema

// Migrate brings the schema to the latest version.
func (s *SQLStore) Migrate() error {
	return s.withMigrationHandle(func(db *sql.DB) error {
		return migrations.MigrateUp(db, s.d.name)
	})
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLStore) CheckMigrations() error {
	return s.withMigrationHandle(func(db *sql.DB) error {
		return migrations.CheckDBMigrationStatus(db, s.d.name)
	})
}

// withMigrationHandle hands Postgres migrations a dedicated pool, since the
// migration driver closes the handle it is given.
func (s *SQLStore) withMigrationHandle(fn func(db *sql.DB) error) error {
	if s.d.name != migrations.Postgres {
		return fn(s.db)
	}
	return withDedicatedHandle(func() (*sql.DB, error) {
		return sql.Open("pgx", s.dsn)
	}, fn)
}

// withDedicatedHandle runs fn on a freshly opened pool and closes it
// afterwards, also when the migration driver never took ownership of it.
func withDedicatedHandle(open func() (*sql.DB, error), fn func(db *sql.DB) error) error {
	db, err := open()
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// BackupTo writes a complete copy of a SQLite database to destPath using
// VACUUM INTO. destPath must not exist.
func (s *SQLStore) BackupTo(ctx context.Context, destPath string) error {
	if s.d.name != migrations.SQLite {
		return ErrSnapshotUnsupported
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ themesync.Store = (*SQLStore)(nil)
