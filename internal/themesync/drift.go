package themesync

import (
	"context"
	"errors"
	"fmt"

	"themesync/internal/model"
)

// DriftReport lists how a theme's disk state differs from its last sync.
type DriftReport struct {
	Theme   string   `json:"theme"`
	New     []string `json:"new,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Missing []string `json:"missing,omitempty"`

	// DirectoryMissing is set when a known theme's directory is gone.
	// Every tracked path is then listed in Missing.
	DirectoryMissing bool `json:"directory_missing,omitempty"`
}

// HasDrifted reports whether a sync would create a version. Missing files
// are retained by sync and so do not count.
func (r *DriftReport) HasDrifted() bool {
	return len(r.New) > 0 || len(r.Changed) > 0
}

// CheckForUpdates reports whether syncing the theme would change anything.
// It never writes to the store.
func (s *Service) CheckForUpdates(ctx context.Context, name string) (bool, error) {
	report, err := s.Drift(ctx, name)
	if err != nil {
		return false, err
	}
	return report.HasDrifted(), nil
}

// Drift compares the theme's directory against its tracked files without
// writing anything. The directory is the one the theme was last synced
// from. A theme unknown to the store with files on disk is reported as
// entirely new.
func (s *Service) Drift(ctx context.Context, name string) (*DriftReport, error) {
	if err := ValidateThemeName(name); err != nil {
		return nil, err
	}

	theme, err := s.store.FindTheme(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding theme %s: %w", name, err)
	}

	directoryMissing := false
	files, dir, err := s.scanSource(ctx, name, theme)
	if err != nil {
		if !errors.Is(err, ErrNotFound) || theme == nil {
			return nil, fmt.Errorf("scanning theme %s: %w", name, err)
		}
		s.logger.Warn("theme directory missing", "theme", name, "dir", dir)
		directoryMissing = true
		files = nil
	}

	tracked := map[string]*model.TrackedFile{}
	if theme != nil {
		tracked, err = s.store.TrackedFiles(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("loading tracked files of %s: %w", name, err)
		}
	}

	plan, err := planSync(files, tracked)
	if err != nil {
		return nil, err
	}

	report := &DriftReport{Theme: name, Missing: plan.missing, DirectoryMissing: directoryMissing}
	for _, c := range plan.created {
		report.New = append(report.New, c.file.Path)
	}
	for _, c := range plan.changed {
		report.Changed = append(report.Changed, c.file.Path)
	}

	s.logger.Debug("drift checked", "theme", name,
		"new", len(report.New), "changed", len(report.Changed), "missing", len(report.Missing))
	return report, nil
}
