package database

import (
	"context"
	"time"

	"themesync/internal/model"
	"themesync/internal/themesync"
)

// sqlTx is the themesync.Tx handed to WithTx callbacks.
type sqlTx struct {
	q *Queries
}

func (t *sqlTx) LockTheme(ctx context.Context, name string) (*model.Theme, error) {
	return t.q.GetTheme(ctx, name, true)
}

func (t *sqlTx) LockAllThemes(ctx context.Context) error {
	return t.q.LockAllThemes(ctx)
}

func (t *sqlTx) CreateTheme(ctx context.Context, theme *model.Theme) error {
	return t.q.InsertTheme(ctx, theme)
}

func (t *sqlTx) UpdateThemeMetadata(ctx context.Context, theme *model.Theme) error {
	return t.q.UpdateThemeMetadata(ctx, theme)
}

func (t *sqlTx) SetActiveTheme(ctx context.Context, name, actor string, at time.Time) error {
	return t.q.SetActiveTheme(ctx, name, actor, at)
}

func (t *sqlTx) TrackedFiles(ctx context.Context, themeName string) (map[string]*model.TrackedFile, error) {
	return t.q.TrackedFiles(ctx, themeName)
}

func (t *sqlTx) NextThemeVersionNumber(ctx context.Context, themeName string) (int, error) {
	return t.q.NextThemeVersionNumber(ctx, themeName)
}

func (t *sqlTx) CreateThemeVersion(ctx context.Context, version *model.ThemeVersion) error {
	return t.q.InsertThemeVersion(ctx, version)
}

func (t *sqlTx) CreateThemeFile(ctx context.Context, file *model.ThemeFile) error {
	return t.q.InsertThemeFile(ctx, file)
}

func (t *sqlTx) AdvanceThemeFile(ctx context.Context, fileID string, versionNumber int, themeVersionID string, at time.Time) error {
	return t.q.AdvanceThemeFile(ctx, fileID, versionNumber, themeVersionID, at)
}

func (t *sqlTx) CreateFileVersion(ctx context.Context, version *model.ThemeFileVersion) error {
	return t.q.InsertFileVersion(ctx, version)
}

func (t *sqlTx) SetLiveVersion(ctx context.Context, themeName, versionID string, at time.Time) error {
	return t.q.SetLiveVersion(ctx, themeName, versionID, at)
}

func (t *sqlTx) SetPreviewVersion(ctx context.Context, themeName, versionID string) error {
	return t.q.SetPreviewVersion(ctx, themeName, versionID)
}

var _ themesync.Tx = (*sqlTx)(nil)
