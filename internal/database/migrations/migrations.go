package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFiles embed.FS

// Dialects with an embedded migration set.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// CheckDBMigrationStatus verifies that the database schema is up-to-date.
// Returns nil if the database is at the latest version.
//
// For Postgres the migration driver pins a connection from db and closes
// db with it, so callers pass a dedicated handle.
func CheckDBMigrationStatus(db *sql.DB, dialect string) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer release(m, dialect)

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("database has no schema version (needs migration)")
		}
		return fmt.Errorf("failed to get database version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	sourceDriver, err := iofs.New(migrationFiles, sourceDir(dialect))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	defer sourceDriver.Close()

	latestVersion, err := getLatestVersion(sourceDriver)
	if err != nil {
		return fmt.Errorf("failed to determine latest version: %w", err)
	}

	if version < latestVersion {
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, latestVersion, latestVersion-version)
	}

	if version > latestVersion {
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, latestVersion)
	}

	return nil
}

// MigrateUp runs all pending migrations to bring database to latest version.
// The Postgres caveat of CheckDBMigrationStatus applies.
func MigrateUp(db *sql.DB, dialect string) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer release(m, dialect)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

func sourceDir(dialect string) string {
	return "files/" + dialect
}

// newMigrate creates a migrate instance for the dialect over db.
func newMigrate(db *sql.DB, dialect string) (*migrate.Migrate, error) {
	var (
		dbDriver   database.Driver
		driverName string
		err        error
	)
	switch dialect {
	case SQLite:
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		driverName = "sqlite3"
	case Postgres:
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
		driverName = "pgx5"
	default:
		return nil, fmt.Errorf("unknown dialect: %s", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFiles, sourceDir(dialect))
	if err != nil {
		closeDriver(dbDriver, dialect)
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, driverName, dbDriver)
	if err != nil {
		sourceDriver.Close()
		closeDriver(dbDriver, dialect)
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}

// release frees a Postgres migrate instance. SQLite instances are left
// open because closing them would close the caller's connection.
func release(m *migrate.Migrate, dialect string) {
	if dialect == Postgres {
		m.Close()
	}
}

// closeDriver releases the connection a Postgres driver pinned. The SQLite
// driver shares the store's pool and is left open.
func closeDriver(d database.Driver, dialect string) {
	if dialect == Postgres {
		d.Close()
	}
}

// getLatestVersion returns the highest version number available in the source.
func getLatestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}

	latestVersion := version
	for {
		nextVersion, err := src.Next(latestVersion)
		if err != nil {
			// Any error from Next() means we've reached the end
			break
		}
		latestVersion = nextVersion
	}

	return latestVersion, nil
}
