package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"themesync/internal/themesync"
)

// Postgres SQLSTATE codes treated as retryable contention.
var pgConflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"23505": true, // unique_violation
}

// classify maps a driver error onto the service's error taxonomy. Lock
// contention and unique violations lost to a concurrent writer become
// ErrConflict; everything else is ErrStorage. Errors that already carry a
// service sentinel pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{themesync.ErrNotFound, themesync.ErrConflict, themesync.ErrStorage, themesync.ErrValidation, themesync.ErrIO} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", themesync.ErrConflict, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique, se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", themesync.ErrConflict, err)
		}
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) && pgConflictCodes[pe.Code] {
		return fmt.Errorf("%w: %w", themesync.ErrConflict, err)
	}

	return fmt.Errorf("%w: %w", themesync.ErrStorage, err)
}

// wrap classifies err and prefixes it with what was being attempted.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, classify(err))
}
