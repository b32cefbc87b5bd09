package themesync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"themesync/internal/model"
)

// Read returns the tracked content of a file at its current version.
// Content always comes from the version store, never from disk, so an
// edit that has not been synced is invisible here.
func (s *Service) Read(ctx context.Context, name, path string) ([]byte, error) {
	file, err := s.findFile(ctx, name, path)
	if err != nil {
		return nil, err
	}
	return s.readVersion(ctx, file, file.CurrentVersion)
}

// ReadVersion returns the content of one historical revision of a file.
func (s *Service) ReadVersion(ctx context.Context, name, path string, versionNumber int) ([]byte, error) {
	if versionNumber < 1 {
		return nil, fmt.Errorf("%w: version number must be positive, got %d", ErrValidation, versionNumber)
	}
	file, err := s.findFile(ctx, name, path)
	if err != nil {
		return nil, err
	}
	return s.readVersion(ctx, file, versionNumber)
}

// ReadActive returns the current content of path within the active theme.
func (s *Service) ReadActive(ctx context.Context, path string) ([]byte, error) {
	theme, err := s.ActiveTheme(ctx)
	if err != nil {
		return nil, err
	}
	return s.Read(ctx, theme.Name, path)
}

// FileRevision is one entry of a file's history.
type FileRevision struct {
	VersionNumber  int       `json:"version_number"`
	Checksum       string    `json:"checksum"`
	Size           int64     `json:"size"`
	Author         string    `json:"author"`
	ChangeSummary  string    `json:"change_summary"`
	ThemeVersionID string    `json:"theme_version_id"`
	VersionLabel   string    `json:"version_label"`
	Current        bool      `json:"current"`
	CreatedAt      time.Time `json:"created_at"`
}

// FileHistory returns every revision of a file, newest first.
func (s *Service) FileHistory(ctx context.Context, name, path string) ([]*FileRevision, error) {
	file, err := s.findFile(ctx, name, path)
	if err != nil {
		return nil, err
	}

	versions, err := s.store.ListFileVersions(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("listing history of %s/%s: %w", name, path, err)
	}
	batches, err := s.store.ListThemeVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", name, err)
	}
	labels := make(map[string]string, len(batches))
	for _, b := range batches {
		labels[b.ID] = b.Label
	}

	history := make([]*FileRevision, 0, len(versions))
	for _, v := range versions {
		history = append(history, &FileRevision{
			VersionNumber:  v.VersionNumber,
			Checksum:       v.Checksum,
			Size:           v.Size,
			Author:         v.Author,
			ChangeSummary:  v.ChangeSummary,
			ThemeVersionID: v.ThemeVersionID,
			VersionLabel:   labels[v.ThemeVersionID],
			Current:        v.VersionNumber == file.CurrentVersion,
			CreatedAt:      v.CreatedAt,
		})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].VersionNumber > history[j].VersionNumber })
	return history, nil
}

func (s *Service) findFile(ctx context.Context, name, path string) (*model.ThemeFile, error) {
	if err := ValidateThemeName(name); err != nil {
		return nil, err
	}
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	file, err := s.store.FindThemeFile(ctx, name, path)
	if err != nil {
		return nil, fmt.Errorf("finding file %s/%s: %w", name, path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: file %s/%s", ErrNotFound, name, path)
	}
	return file, nil
}

// readVersion loads a revision and re-verifies its checksum, so corrupted
// rows are reported instead of served.
func (s *Service) readVersion(ctx context.Context, file *model.ThemeFile, versionNumber int) ([]byte, error) {
	v, err := s.store.FindFileVersion(ctx, file.ID, versionNumber)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s@%d: %w", file.ThemeName, file.Path, versionNumber, err)
	}
	if v == nil {
		if versionNumber == file.CurrentVersion {
			return nil, fmt.Errorf("%w: current version %d of %s/%s has no content", ErrStorage, versionNumber, file.ThemeName, file.Path)
		}
		return nil, fmt.Errorf("%w: version %d of %s/%s", ErrNotFound, versionNumber, file.ThemeName, file.Path)
	}
	if got := Digest(v.Content); got != v.Checksum {
		s.logger.Error("checksum mismatch", "theme", file.ThemeName, "path", file.Path,
			"version", versionNumber, "stored", v.Checksum, "computed", got)
		return nil, fmt.Errorf("%w: checksum mismatch for %s/%s@%d", ErrStorage, file.ThemeName, file.Path, versionNumber)
	}
	return v.Content, nil
}
