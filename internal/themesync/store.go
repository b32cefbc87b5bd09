package themesync

import (
	"context"
	"time"

	"themesync/internal/model"
)

// Store is the persistence boundary for themes and their version history.
// Lookups return (nil, nil) when the row does not exist. Implementations
// wrap failures in ErrStorage or ErrConflict.
type Store interface {
	// Theme reads

	// FindTheme returns the theme with the given name.
	FindTheme(ctx context.Context, name string) (*model.Theme, error)

	// ListThemes returns all themes ordered by name.
	ListThemes(ctx context.Context) ([]*model.Theme, error)

	// ActiveThemes returns every theme flagged active. Under the singleton
	// invariant the result has zero or one element.
	ActiveThemes(ctx context.Context) ([]*model.Theme, error)

	// File reads

	// TrackedFiles returns the current state of every tracked path of a theme, keyed by path.
	TrackedFiles(ctx context.Context, themeName string) (map[string]*model.TrackedFile, error)

	// ListThemeFiles returns every tracked file of a theme ordered by path.
	ListThemeFiles(ctx context.Context, themeName string) ([]*model.ThemeFile, error)

	// FindThemeFile returns the tracked file at path within a theme.
	FindThemeFile(ctx context.Context, themeName, path string) (*model.ThemeFile, error)

	// FindFileVersion returns one revision of a file by version number.
	FindFileVersion(ctx context.Context, fileID string, versionNumber int) (*model.ThemeFileVersion, error)

	// ListFileVersions returns the full history of a file, oldest first.
	ListFileVersions(ctx context.Context, fileID string) ([]*model.ThemeFileVersion, error)

	// Release reads

	// ListThemeVersions returns the version batches of a theme, oldest first.
	ListThemeVersions(ctx context.Context, themeName string) ([]*model.ThemeVersion, error)

	// FindThemeVersion returns a version batch by ID.
	FindThemeVersion(ctx context.Context, id string) (*model.ThemeVersion, error)

	// ListBatchFileVersions returns the file versions created in one batch, without content.
	ListBatchFileVersions(ctx context.Context, themeVersionID string) ([]*model.ThemeFileVersion, error)

	// WithTx runs fn inside a single transaction. The transaction commits
	// only if fn returns nil; otherwise every write made through tx is
	// discarded. Implementations serialize writers so that fn observes a
	// stable view of the rows it locks.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Operation log

	CreateOperation(ctx context.Context, operation, parameters, actor string) (*model.Operation, error)
	FinishOperation(ctx context.Context, id int64, status string) error
	ListOperations(ctx context.Context, limit int) ([]*model.Operation, error)
	MaxOperationID(ctx context.Context) (int64, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the underlying connection.
	Close() error
}

// Tx is the write surface available inside Store.WithTx.
type Tx interface {
	// LockTheme returns the named theme and holds a write lock on it until
	// the transaction ends. Returns nil if the theme does not exist.
	LockTheme(ctx context.Context, name string) (*model.Theme, error)

	// LockAllThemes holds a write lock on every theme row. Activation uses
	// it so concurrent activations serialize.
	LockAllThemes(ctx context.Context) error

	CreateTheme(ctx context.Context, theme *model.Theme) error
	UpdateThemeMetadata(ctx context.Context, theme *model.Theme) error

	// SetActiveTheme clears the active flag on every theme and sets it on name.
	SetActiveTheme(ctx context.Context, name, actor string, at time.Time) error

	TrackedFiles(ctx context.Context, themeName string) (map[string]*model.TrackedFile, error)

	// NextThemeVersionNumber returns 1 + the highest batch number of the theme.
	NextThemeVersionNumber(ctx context.Context, themeName string) (int, error)

	CreateThemeVersion(ctx context.Context, version *model.ThemeVersion) error
	CreateThemeFile(ctx context.Context, file *model.ThemeFile) error

	// AdvanceThemeFile moves a file's current pointer to versionNumber.
	AdvanceThemeFile(ctx context.Context, fileID string, versionNumber int, themeVersionID string, at time.Time) error

	CreateFileVersion(ctx context.Context, version *model.ThemeFileVersion) error

	// SetLiveVersion marks one batch of a theme live and clears the flag on the rest.
	SetLiveVersion(ctx context.Context, themeName, versionID string, at time.Time) error

	// SetPreviewVersion marks one batch of a theme as the preview and clears the flag on the rest.
	SetPreviewVersion(ctx context.Context, themeName, versionID string) error
}
