package themesync

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"themesync/internal/model"
)

// SyncOptions carries the attribution recorded on the rows a sync pass
// creates.
type SyncOptions struct {
	// Actor is the authenticated identity that triggered the sync. Required.
	Actor string

	// Summary overrides the generated change summary of the version batch.
	Summary string
}

// SyncReport is the outcome of one theme's sync pass. When Err is set
// nothing was committed for the theme and the counters are zero.
type SyncReport struct {
	Theme          string   `json:"theme"`
	FilesScanned   int      `json:"files_scanned"`
	FilesCreated   int      `json:"files_created"`
	FilesChanged   int      `json:"files_changed"`
	FilesUnchanged int      `json:"files_unchanged"`
	FilesMissing   []string `json:"files_missing,omitempty"`
	VersionCreated bool     `json:"version_created"`
	VersionID      string   `json:"version_id,omitempty"`
	VersionLabel   string   `json:"version_label,omitempty"`
	ThemeCreated   bool     `json:"theme_created"`
	Err            error    `json:"-"`
	Error          string   `json:"error,omitempty"`
}

// Failed reports whether the pass was rolled back.
func (r *SyncReport) Failed() bool {
	return r.Err != nil
}

func failedReport(theme string, err error) *SyncReport {
	return &SyncReport{Theme: theme, Err: err, Error: err.Error()}
}

// SyncAll discovers every theme under the scanner root and syncs each one
// independently. A failure on one theme is recorded in its report and does
// not stop the others. The returned error is non-nil only if discovery
// itself failed or the options are invalid.
func (s *Service) SyncAll(ctx context.Context, opts SyncOptions) ([]*SyncReport, error) {
	if err := validateActor(opts.Actor); err != nil {
		return nil, err
	}

	names, err := s.scanner.Themes(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering themes: %w", err)
	}

	reports := make([]*SyncReport, 0, len(names))
	failed := 0
	for _, name := range names {
		report, err := s.Sync(ctx, name, opts)
		if err != nil {
			report = failedReport(name, err)
			failed++
		}
		reports = append(reports, report)
	}

	s.logger.Info("sync complete", "themes", len(names), "failed", failed)
	return reports, nil
}

// Sync reconciles the named theme into the version store. A theme last
// synced from an explicit directory is read from that directory again,
// otherwise from its directory under the scanner root.
func (s *Service) Sync(ctx context.Context, name string, opts SyncOptions) (*SyncReport, error) {
	if err := ValidateThemeName(name); err != nil {
		return nil, err
	}
	if err := validateActor(opts.Actor); err != nil {
		return nil, err
	}

	theme, err := s.store.FindTheme(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding theme %s: %w", name, err)
	}
	files, sourceDir, err := s.scanSource(ctx, name, theme)
	if err != nil {
		s.logger.Error("scan failed", "theme", name, "dir", sourceDir, "error", err)
		return nil, fmt.Errorf("scanning theme %s: %w", name, err)
	}
	return s.syncFiles(ctx, name, sourceDir, files, opts)
}

// scanSource reads a theme from the directory it was last synced from.
// The returned dir is empty for themes under the scanner root.
func (s *Service) scanSource(ctx context.Context, name string, theme *model.Theme) ([]*model.ScannedFile, string, error) {
	if theme != nil && theme.SourceDir != "" {
		files, err := s.scanner.ScanDir(ctx, name, theme.SourceDir)
		return files, theme.SourceDir, err
	}
	files, err := s.scanner.Scan(ctx, name)
	return files, "", err
}

// SyncDir reconciles a theme rooted at an explicit directory.
func (s *Service) SyncDir(ctx context.Context, name, dir string, opts SyncOptions) (*SyncReport, error) {
	if err := ValidateThemeName(name); err != nil {
		return nil, err
	}
	if err := validateActor(opts.Actor); err != nil {
		return nil, err
	}

	files, err := s.scanner.ScanDir(ctx, name, dir)
	if err != nil {
		s.logger.Error("scan failed", "theme", name, "dir", dir, "error", err)
		return nil, fmt.Errorf("scanning theme %s in %s: %w", name, dir, err)
	}
	return s.syncFiles(ctx, name, dir, files, opts)
}

// syncFiles commits one pass for a theme read from sourceDir. Every write
// happens inside a single transaction so readers see either the whole
// batch or none of it.
func (s *Service) syncFiles(ctx context.Context, name, sourceDir string, files []*model.ScannedFile, opts SyncOptions) (*SyncReport, error) {
	manifest, err := findManifest(name, files)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sync of %s aborted: %w", name, err)
	}

	now := s.clock.Now()
	var report *SyncReport

	err = s.store.WithTx(ctx, func(tx Tx) error {
		report = &SyncReport{Theme: name, FilesScanned: len(files)}

		theme, err := tx.LockTheme(ctx, name)
		if err != nil {
			return fmt.Errorf("locking theme: %w", err)
		}
		if theme == nil {
			theme = &model.Theme{
				ID:        s.idgen.New(),
				Name:      name,
				SourceDir: sourceDir,
				CreatedAt: now,
				UpdatedAt: now,
			}
			manifest.applyTo(theme)
			if err := tx.CreateTheme(ctx, theme); err != nil {
				return fmt.Errorf("creating theme: %w", err)
			}
			report.ThemeCreated = true
		} else if changed := manifest.applyTo(theme); changed || theme.SourceDir != sourceDir {
			theme.SourceDir = sourceDir
			theme.UpdatedAt = now
			if err := tx.UpdateThemeMetadata(ctx, theme); err != nil {
				return fmt.Errorf("updating theme metadata: %w", err)
			}
		}

		tracked, err := tx.TrackedFiles(ctx, name)
		if err != nil {
			return fmt.Errorf("loading tracked files: %w", err)
		}

		plan, err := planSync(files, tracked)
		if err != nil {
			return err
		}
		report.FilesCreated = len(plan.created)
		report.FilesChanged = len(plan.changed)
		report.FilesUnchanged = len(plan.unchanged)
		report.FilesMissing = plan.missing

		if !plan.hasChanges() {
			return ctx.Err()
		}

		version, err := s.createBatch(ctx, tx, theme, plan, opts, now)
		if err != nil {
			return err
		}
		report.VersionCreated = true
		report.VersionID = version.ID
		report.VersionLabel = version.Label

		// Abort before commit if the caller gave up.
		return ctx.Err()
	})
	if err != nil {
		s.logger.Error("sync failed", "theme", name, "error", err)
		return nil, fmt.Errorf("syncing theme %s: %w", name, err)
	}

	if len(report.FilesMissing) > 0 {
		s.logger.Warn("tracked files missing on disk", "theme", name, "count", len(report.FilesMissing))
	}
	if report.VersionCreated {
		s.logger.Info("theme synced", "theme", name, "version", report.VersionLabel,
			"created", report.FilesCreated, "changed", report.FilesChanged)
	} else {
		s.logger.Debug("theme unchanged", "theme", name, "files", report.FilesScanned)
	}
	return report, nil
}

// createBatch writes one ThemeVersion and a ThemeFileVersion for every
// created or changed file, all linked to that batch.
func (s *Service) createBatch(ctx context.Context, tx Tx, theme *model.Theme, plan *syncPlan, opts SyncOptions, now time.Time) (*model.ThemeVersion, error) {
	number, err := tx.NextThemeVersionNumber(ctx, theme.Name)
	if err != nil {
		return nil, fmt.Errorf("allocating version number: %w", err)
	}

	summary := opts.Summary
	if summary == "" {
		summary = fmt.Sprintf("sync: %d created, %d changed", len(plan.created), len(plan.changed))
	}

	version := &model.ThemeVersion{
		ID:            s.idgen.New(),
		ThemeName:     theme.Name,
		Number:        number,
		Label:         versionLabel(theme.DeclaredVersion, number),
		Author:        opts.Actor,
		ChangeSummary: summary,
		CreatedAt:     now,
	}
	if err := tx.CreateThemeVersion(ctx, version); err != nil {
		return nil, fmt.Errorf("creating theme version: %w", err)
	}

	for _, c := range plan.created {
		file := &model.ThemeFile{
			ID:             s.idgen.New(),
			ThemeName:      theme.Name,
			Path:           c.file.Path,
			FileType:       fileTypeOf(c.file),
			CurrentVersion: 1,
			ThemeVersionID: version.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.CreateThemeFile(ctx, file); err != nil {
			return nil, fmt.Errorf("creating file %s: %w", c.file.Path, err)
		}
		if err := tx.CreateFileVersion(ctx, s.newFileVersion(file.ID, version.ID, 1, c, opts.Actor, "created", now)); err != nil {
			return nil, fmt.Errorf("creating version of %s: %w", c.file.Path, err)
		}
	}

	for _, c := range plan.changed {
		next := c.tracked.CurrentVersion + 1
		if err := tx.CreateFileVersion(ctx, s.newFileVersion(c.tracked.FileID, version.ID, next, c, opts.Actor, "updated", now)); err != nil {
			return nil, fmt.Errorf("creating version of %s: %w", c.file.Path, err)
		}
		if err := tx.AdvanceThemeFile(ctx, c.tracked.FileID, next, version.ID, now); err != nil {
			return nil, fmt.Errorf("advancing %s: %w", c.file.Path, err)
		}
	}

	return version, nil
}

func (s *Service) newFileVersion(fileID, versionID string, number int, c fileChange, actor, summary string, now time.Time) *model.ThemeFileVersion {
	return &model.ThemeFileVersion{
		ID:             s.idgen.New(),
		ThemeFileID:    fileID,
		ThemeVersionID: versionID,
		VersionNumber:  number,
		Content:        c.file.Content,
		Size:           int64(len(c.file.Content)),
		Checksum:       c.checksum,
		Author:         actor,
		ChangeSummary:  summary,
		CreatedAt:      now,
	}
}

// versionLabel names a batch "r<n>", prefixed with the manifest's declared
// version when there is one.
func versionLabel(declared string, number int) string {
	if declared == "" {
		return fmt.Sprintf("r%d", number)
	}
	return fmt.Sprintf("%s-r%d", declared, number)
}

// FileTypeOf returns the lowercased extension of path without the dot,
// or "" when it has none.
func FileTypeOf(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

func fileTypeOf(f *model.ScannedFile) string {
	if f.FileType != "" {
		return f.FileType
	}
	return FileTypeOf(f.Path)
}
