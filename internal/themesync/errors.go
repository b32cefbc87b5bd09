package themesync

import "errors"

// Sentinel errors returned by the service and its collaborators. Callers
// match them with errors.Is; every layer wraps them with context.
var (
	// ErrNotFound reports an unknown theme, path, or version.
	ErrNotFound = errors.New("not found")

	// ErrIO reports an unreadable theme directory or a partial read.
	ErrIO = errors.New("io error")

	// ErrStorage reports a failure of the underlying data store.
	ErrStorage = errors.New("storage error")

	// ErrConflict reports lock contention or a concurrent write that lost.
	// The failed operation left no changes behind and is safe to retry.
	ErrConflict = errors.New("conflict")

	// ErrValidation reports a malformed theme name, path, or manifest.
	ErrValidation = errors.New("validation error")
)
