package migrations

import (
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"themes", "theme_versions", "theme_files", "theme_file_versions", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckDBMigrationStatus(db, SQLite)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db, SQLite); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestMigrateUp_UnknownDialect(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, "oracle"); err == nil {
		t.Error("MigrateUp() expected error for unknown dialect, got nil")
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := migratedTestDB(t)

	// A file for a theme that does not exist.
	_, err := db.Exec(`
		INSERT INTO theme_files (id, theme_name, path, current_version, created_at, updated_at)
		VALUES ('file-1', 'ghost', 'a.css', 1, ?, ?)
	`, time.Now(), time.Now())

	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_SingleActiveTheme(t *testing.T) {
	db := migratedTestDB(t)
	insertTheme(t, db, "t1", "nordic", true)

	_, err := db.Exec(`INSERT INTO themes (id, name, active, created_at, updated_at) VALUES ('t2', 'dawn', 1, ?, ?)`, time.Now(), time.Now())
	if err == nil {
		t.Error("Expected unique violation for a second active theme, but insert succeeded")
	}

	// Any number of inactive themes is fine.
	insertTheme(t, db, "t3", "sense", false)
	insertTheme(t, db, "t4", "craft", false)
}

func TestSchema_FileVersionsAppendOnly(t *testing.T) {
	db := migratedTestDB(t)
	now := time.Now()
	insertTheme(t, db, "t1", "nordic", false)

	stmts := []string{
		`INSERT INTO theme_versions (id, theme_name, number, label, author, created_at) VALUES ('v1', 'nordic', 1, 'r1', 'ada', ?)`,
		`INSERT INTO theme_files (id, theme_name, path, current_version, theme_version_id, created_at, updated_at) VALUES ('f1', 'nordic', 'a.css', 1, 'v1', ?, ?)`,
		`INSERT INTO theme_file_versions (id, theme_file_id, theme_version_id, version_number, content, size, checksum, author, created_at) VALUES ('fv1', 'f1', 'v1', 1, x'00', 1, 'c', 'ada', ?)`,
	}
	for _, s := range stmts {
		args := []any{now}
		if s == stmts[1] {
			args = append(args, now)
		}
		if _, err := db.Exec(s, args...); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}

	if _, err := db.Exec(`UPDATE theme_file_versions SET checksum = 'x' WHERE id = 'fv1'`); err == nil {
		t.Error("Expected UPDATE on theme_file_versions to be rejected")
	}
	if _, err := db.Exec(`DELETE FROM theme_file_versions WHERE id = 'fv1'`); err == nil {
		t.Error("Expected DELETE on theme_file_versions to be rejected")
	}

	// Duplicate version number for the same file.
	_, err := db.Exec(`INSERT INTO theme_file_versions (id, theme_file_id, theme_version_id, version_number, content, size, checksum, author, created_at) VALUES ('fv2', 'f1', 'v1', 1, x'01', 1, 'd', 'ada', ?)`, now)
	if err == nil {
		t.Error("Expected unique violation for a reused version number")
	}
}

func TestMigrateUp_Postgres(t *testing.T) {
	dsn := os.Getenv("THEMESYNC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("THEMESYNC_TEST_POSTGRES_DSN not set")
	}

	// Each call consumes its handle.
	for i := 0; i < 2; i++ {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			t.Fatalf("sql.Open() error = %v", err)
		}
		if err := MigrateUp(db, Postgres); err != nil {
			t.Fatalf("MigrateUp() run %d failed: %v", i+1, err)
		}
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if err := CheckDBMigrationStatus(db, Postgres); err != nil {
		t.Errorf("CheckDBMigrationStatus() error = %v", err)
	}
}

func insertTheme(t *testing.T, db *sql.DB, id, name string, active bool) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO themes (id, name, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, active, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("inserting theme %s: %v", name, err)
	}
}

func migratedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	t.Cleanup(func() { db.Close() })
	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	return db
}

// openTestDB opens an in-memory SQLite database for testing. A single
// connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	return db
}
