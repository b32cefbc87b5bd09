package themesync

import (
	"context"

	"themesync/internal/model"
)

// Scanner discovers themes and their files on disk. It is read-only and
// never touches the store. Implementations wrap filesystem failures in
// ErrIO and report a missing theme directory as ErrNotFound.
type Scanner interface {
	// Themes returns the names of every theme directory under the root.
	Themes(ctx context.Context) ([]string, error)

	// Scan reads every tracked file of the named theme under the root.
	Scan(ctx context.Context, themeName string) ([]*model.ScannedFile, error)

	// ScanDir reads every tracked file of a theme rooted at dir.
	ScanDir(ctx context.Context, themeName, dir string) ([]*model.ScannedFile, error)
}
