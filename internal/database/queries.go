package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"themesync/internal/model"
	"themesync/internal/themesync"
)

// DBTX is the subset of *sql.DB and *sql.Tx the queries need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement the store runs. The same Queries serve
// plain reads over the pool and writes inside a transaction.
type Queries struct {
	db DBTX
	d  dialect
}

func newQueries(db DBTX, d dialect) *Queries {
	return &Queries{db: db, d: d}
}

// WithTx returns a copy of q that runs against tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, d: q.d}
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.d.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.d.rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.d.rebind(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

// Themes

const themeColumns = `id, name, display_name, author, description, declared_version, settings,
	source_dir, active, activated_at, activated_by, created_at, updated_at`

func scanTheme(row scanner) (*model.Theme, error) {
	var (
		t           model.Theme
		settings    string
		activatedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Author, &t.Description, &t.DeclaredVersion, &settings,
		&t.SourceDir, &t.Active, &activatedAt, &t.ActivatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &t.Settings); err != nil {
		return nil, fmt.Errorf("%w: decoding settings of theme %s: %v", themesync.ErrStorage, t.Name, err)
	}
	t.ActivatedAt = utcPtr(activatedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// GetTheme returns the named theme, or nil. With lock set the row stays
// locked until the enclosing transaction ends.
func (q *Queries) GetTheme(ctx context.Context, name string, lock bool) (*model.Theme, error) {
	query := `SELECT ` + themeColumns + ` FROM themes WHERE name = ?`
	if lock {
		query += q.d.forUpdate
	}
	t, err := scanTheme(q.queryRow(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting theme", err)
	}
	return t, nil
}

func (q *Queries) listThemes(ctx context.Context, where string, args ...any) ([]*model.Theme, error) {
	rows, err := q.query(ctx, `SELECT `+themeColumns+` FROM themes `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, wrap("listing themes", err)
	}
	defer rows.Close()

	var themes []*model.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, wrap("scanning theme", err)
		}
		themes = append(themes, t)
	}
	return themes, wrap("listing themes", rows.Err())
}

func (q *Queries) ListThemes(ctx context.Context) ([]*model.Theme, error) {
	return q.listThemes(ctx, "")
}

func (q *Queries) ListActiveThemes(ctx context.Context) ([]*model.Theme, error) {
	return q.listThemes(ctx, "WHERE active = ?", true)
}

// LockAllThemes takes a row lock on every theme, in name order so that
// concurrent lockers cannot deadlock.
func (q *Queries) LockAllThemes(ctx context.Context) error {
	rows, err := q.query(ctx, `SELECT name FROM themes ORDER BY name`+q.d.forUpdate)
	if err != nil {
		return wrap("locking themes", err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return wrap("locking themes", rows.Err())
}

func (q *Queries) InsertTheme(ctx context.Context, t *model.Theme) error {
	settings, err := encodeSettings(t.Settings)
	if err != nil {
		return err
	}
	_, err = q.exec(ctx, `
		INSERT INTO themes (id, name, display_name, author, description, declared_version, settings,
			source_dir, active, activated_at, activated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.DisplayName, t.Author, t.Description, t.DeclaredVersion, settings,
		t.SourceDir, t.Active, nullTime(t.ActivatedAt), t.ActivatedBy, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	return wrap("inserting theme", err)
}

func (q *Queries) UpdateThemeMetadata(ctx context.Context, t *model.Theme) error {
	settings, err := encodeSettings(t.Settings)
	if err != nil {
		return err
	}
	res, err := q.exec(ctx, `
		UPDATE themes SET display_name = ?, author = ?, description = ?, declared_version = ?,
			settings = ?, source_dir = ?, updated_at = ?
		WHERE name = ?`,
		t.DisplayName, t.Author, t.Description, t.DeclaredVersion, settings, t.SourceDir, t.UpdatedAt.UTC(), t.Name)
	if err != nil {
		return wrap("updating theme", err)
	}
	return expectOne(res, "theme "+t.Name)
}

// SetActiveTheme clears the active flag everywhere else before setting it
// on name, so the single-active index is never violated mid-statement.
func (q *Queries) SetActiveTheme(ctx context.Context, name, actor string, at time.Time) error {
	if _, err := q.exec(ctx, `UPDATE themes SET active = ? WHERE active = ? AND name <> ?`, false, true, name); err != nil {
		return wrap("deactivating themes", err)
	}
	res, err := q.exec(ctx, `UPDATE themes SET active = ?, activated_at = ?, activated_by = ? WHERE name = ?`,
		true, at.UTC(), actor, name)
	if err != nil {
		return wrap("activating theme", err)
	}
	return expectOne(res, "theme "+name)
}

// Files

func (q *Queries) TrackedFiles(ctx context.Context, themeName string) (map[string]*model.TrackedFile, error) {
	rows, err := q.query(ctx, `
		SELECT f.id, f.path, f.current_version, v.checksum
		FROM theme_files f
		JOIN theme_file_versions v ON v.theme_file_id = f.id AND v.version_number = f.current_version
		WHERE f.theme_name = ?`, themeName)
	if err != nil {
		return nil, wrap("loading tracked files", err)
	}
	defer rows.Close()

	tracked := make(map[string]*model.TrackedFile)
	for rows.Next() {
		var f model.TrackedFile
		if err := rows.Scan(&f.FileID, &f.Path, &f.CurrentVersion, &f.Checksum); err != nil {
			return nil, wrap("scanning tracked file", err)
		}
		tracked[f.Path] = &f
	}
	return tracked, wrap("loading tracked files", rows.Err())
}

const themeFileColumns = `id, theme_name, path, file_type, current_version, theme_version_id, created_at, updated_at`

func scanThemeFile(row scanner) (*model.ThemeFile, error) {
	var (
		f         model.ThemeFile
		versionID sql.NullString
	)
	if err := row.Scan(&f.ID, &f.ThemeName, &f.Path, &f.FileType, &f.CurrentVersion, &versionID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.ThemeVersionID = versionID.String
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func (q *Queries) ListThemeFiles(ctx context.Context, themeName string) ([]*model.ThemeFile, error) {
	rows, err := q.query(ctx, `SELECT `+themeFileColumns+` FROM theme_files WHERE theme_name = ? ORDER BY path`, themeName)
	if err != nil {
		return nil, wrap("listing theme files", err)
	}
	defer rows.Close()

	var files []*model.ThemeFile
	for rows.Next() {
		f, err := scanThemeFile(rows)
		if err != nil {
			return nil, wrap("scanning theme file", err)
		}
		files = append(files, f)
	}
	return files, wrap("listing theme files", rows.Err())
}

func (q *Queries) GetThemeFile(ctx context.Context, themeName, path string) (*model.ThemeFile, error) {
	f, err := scanThemeFile(q.queryRow(ctx, `SELECT `+themeFileColumns+` FROM theme_files WHERE theme_name = ? AND path = ?`, themeName, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting theme file", err)
	}
	return f, nil
}

func (q *Queries) InsertThemeFile(ctx context.Context, f *model.ThemeFile) error {
	_, err := q.exec(ctx, `
		INSERT INTO theme_files (id, theme_name, path, file_type, current_version, theme_version_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ThemeName, f.Path, f.FileType, f.CurrentVersion, nullString(f.ThemeVersionID), f.CreatedAt.UTC(), f.UpdatedAt.UTC())
	return wrap("inserting theme file", err)
}

// AdvanceThemeFile moves the current pointer forward by exactly one. The
// guard on the previous version turns a lost update into a conflict.
func (q *Queries) AdvanceThemeFile(ctx context.Context, fileID string, versionNumber int, themeVersionID string, at time.Time) error {
	res, err := q.exec(ctx, `
		UPDATE theme_files SET current_version = ?, theme_version_id = ?, updated_at = ?
		WHERE id = ? AND current_version = ?`,
		versionNumber, themeVersionID, at.UTC(), fileID, versionNumber-1)
	if err != nil {
		return wrap("advancing theme file", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("advancing theme file", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: file %s moved past version %d concurrently", themesync.ErrConflict, fileID, versionNumber-1)
	}
	return nil
}

// File versions

const fileVersionColumns = `id, theme_file_id, theme_version_id, version_number, size, checksum, author, change_summary, created_at`

func scanFileVersion(row scanner, withContent bool) (*model.ThemeFileVersion, error) {
	var v model.ThemeFileVersion
	dest := []any{&v.ID, &v.ThemeFileID, &v.ThemeVersionID, &v.VersionNumber, &v.Size, &v.Checksum, &v.Author, &v.ChangeSummary, &v.CreatedAt}
	if withContent {
		dest = append(dest, &v.Content)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

func (q *Queries) GetFileVersion(ctx context.Context, fileID string, versionNumber int) (*model.ThemeFileVersion, error) {
	v, err := scanFileVersion(q.queryRow(ctx, `
		SELECT `+fileVersionColumns+`, content FROM theme_file_versions
		WHERE theme_file_id = ? AND version_number = ?`, fileID, versionNumber), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting file version", err)
	}
	return v, nil
}

func (q *Queries) listFileVersions(ctx context.Context, column, id string) ([]*model.ThemeFileVersion, error) {
	rows, err := q.query(ctx, `
		SELECT `+fileVersionColumns+` FROM theme_file_versions
		WHERE `+column+` = ? ORDER BY theme_file_id, version_number`, id)
	if err != nil {
		return nil, wrap("listing file versions", err)
	}
	defer rows.Close()

	var versions []*model.ThemeFileVersion
	for rows.Next() {
		v, err := scanFileVersion(rows, false)
		if err != nil {
			return nil, wrap("scanning file version", err)
		}
		versions = append(versions, v)
	}
	return versions, wrap("listing file versions", rows.Err())
}

// ListFileVersions returns a file's history oldest first, without content.
func (q *Queries) ListFileVersions(ctx context.Context, fileID string) ([]*model.ThemeFileVersion, error) {
	return q.listFileVersions(ctx, "theme_file_id", fileID)
}

// ListBatchFileVersions returns the versions created by one batch, without content.
func (q *Queries) ListBatchFileVersions(ctx context.Context, themeVersionID string) ([]*model.ThemeFileVersion, error) {
	return q.listFileVersions(ctx, "theme_version_id", themeVersionID)
}

func (q *Queries) InsertFileVersion(ctx context.Context, v *model.ThemeFileVersion) error {
	content := v.Content
	if content == nil {
		// nil binds as NULL
		content = []byte{}
	}
	_, err := q.exec(ctx, `
		INSERT INTO theme_file_versions (id, theme_file_id, theme_version_id, version_number, content, size,
			checksum, author, change_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ThemeFileID, v.ThemeVersionID, v.VersionNumber, content, v.Size,
		v.Checksum, v.Author, v.ChangeSummary, v.CreatedAt.UTC())
	return wrap("inserting file version", err)
}

// Theme versions

const themeVersionColumns = `id, theme_name, number, label, is_live, is_preview, author, change_summary, created_at, published_at`

func scanThemeVersion(row scanner) (*model.ThemeVersion, error) {
	var (
		v           model.ThemeVersion
		publishedAt sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.ThemeName, &v.Number, &v.Label, &v.IsLive, &v.IsPreview, &v.Author, &v.ChangeSummary, &v.CreatedAt, &publishedAt); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.PublishedAt = utcPtr(publishedAt)
	return &v, nil
}

func (q *Queries) ListThemeVersions(ctx context.Context, themeName string) ([]*model.ThemeVersion, error) {
	rows, err := q.query(ctx, `SELECT `+themeVersionColumns+` FROM theme_versions WHERE theme_name = ? ORDER BY number`, themeName)
	if err != nil {
		return nil, wrap("listing theme versions", err)
	}
	defer rows.Close()

	var versions []*model.ThemeVersion
	for rows.Next() {
		v, err := scanThemeVersion(rows)
		if err != nil {
			return nil, wrap("scanning theme version", err)
		}
		versions = append(versions, v)
	}
	return versions, wrap("listing theme versions", rows.Err())
}

func (q *Queries) GetThemeVersion(ctx context.Context, id string) (*model.ThemeVersion, error) {
	v, err := scanThemeVersion(q.queryRow(ctx, `SELECT `+themeVersionColumns+` FROM theme_versions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting theme version", err)
	}
	return v, nil
}

func (q *Queries) NextThemeVersionNumber(ctx context.Context, themeName string) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM theme_versions WHERE theme_name = ?`, themeName).Scan(&n)
	if err != nil {
		return 0, wrap("allocating version number", err)
	}
	return n, nil
}

func (q *Queries) InsertThemeVersion(ctx context.Context, v *model.ThemeVersion) error {
	_, err := q.exec(ctx, `
		INSERT INTO theme_versions (id, theme_name, number, label, is_live, is_preview, author, change_summary,
			created_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ThemeName, v.Number, v.Label, v.IsLive, v.IsPreview, v.Author, v.ChangeSummary,
		v.CreatedAt.UTC(), nullTime(v.PublishedAt))
	return wrap("inserting theme version", err)
}

func (q *Queries) SetLiveVersion(ctx context.Context, themeName, versionID string, at time.Time) error {
	if _, err := q.exec(ctx, `UPDATE theme_versions SET is_live = ? WHERE theme_name = ? AND is_live = ? AND id <> ?`,
		false, themeName, true, versionID); err != nil {
		return wrap("clearing live version", err)
	}
	res, err := q.exec(ctx, `UPDATE theme_versions SET is_live = ?, published_at = ? WHERE id = ? AND theme_name = ?`,
		true, at.UTC(), versionID, themeName)
	if err != nil {
		return wrap("setting live version", err)
	}
	return expectOne(res, "version "+versionID)
}

func (q *Queries) SetPreviewVersion(ctx context.Context, themeName, versionID string) error {
	if _, err := q.exec(ctx, `UPDATE theme_versions SET is_preview = ? WHERE theme_name = ? AND is_preview = ? AND id <> ?`,
		false, themeName, true, versionID); err != nil {
		return wrap("clearing preview version", err)
	}
	res, err := q.exec(ctx, `UPDATE theme_versions SET is_preview = ? WHERE id = ? AND theme_name = ?`,
		true, versionID, themeName)
	if err != nil {
		return wrap("setting preview version", err)
	}
	return expectOne(res, "version "+versionID)
}

// Operations

func (q *Queries) InsertOperation(ctx context.Context, operation, parameters, actor, status string, at time.Time) (int64, error) {
	var id int64
	err := q.queryRow(ctx, `
		INSERT INTO operations (operation, parameters, actor, status, started_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		operation, parameters, actor, status, at.UTC()).Scan(&id)
	if err != nil {
		return 0, wrap("inserting operation", err)
	}
	return id, nil
}

func (q *Queries) FinishOperation(ctx context.Context, id int64, status string, at time.Time) error {
	res, err := q.exec(ctx, `UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`, status, at.UTC(), id)
	if err != nil {
		return wrap("finishing operation", err)
	}
	return expectOne(res, fmt.Sprintf("operation %d", id))
}

func (q *Queries) ListOperations(ctx context.Context, limit int) ([]*model.Operation, error) {
	rows, err := q.query(ctx, `
		SELECT id, operation, parameters, actor, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("listing operations", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var (
			op       model.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Actor, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, wrap("scanning operation", err)
		}
		op.StartedAt = op.StartedAt.UTC()
		op.FinishedAt = utcPtr(finished)
		ops = append(ops, &op)
	}
	return ops, wrap("listing operations", rows.Err())
}

func (q *Queries) MaxOperationID(ctx context.Context) (int64, error) {
	var id int64
	if err := q.queryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id); err != nil {
		return 0, wrap("reading max operation id", err)
	}
	return id, nil
}

// helpers

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("reading affected rows", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", themesync.ErrNotFound, what)
	}
	return nil
}

func encodeSettings(s model.ThemeSettings) (string, error) {
	data, err := json.Marshal(s.Normalized())
	if err != nil {
		return "", fmt.Errorf("%w: encoding settings: %v", themesync.ErrStorage, err)
	}
	return string(data), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
