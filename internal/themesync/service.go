package themesync

import (
	"context"
	"fmt"

	"themesync/internal/model"
)

// Service is the orchestration layer over the scanner and the version
// store. It exposes the trigger operations (sync, drift, activation,
// publishing) and the DB-only read path.
type Service struct {
	store   Store
	scanner Scanner
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService creates a Service with the provided dependencies. A nil
// logger, clock or idgen falls back to NopLogger, RealClock and
// UUIDGenerator.
func NewService(store Store, scanner Scanner, logger Logger, clock Clock, idgen IDGenerator) *Service {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	return &Service{
		store:   store,
		scanner: scanner,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// Themes returns every known theme ordered by name.
func (s *Service) Themes(ctx context.Context) ([]*model.Theme, error) {
	themes, err := s.store.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	return themes, nil
}

// Theme returns the named theme.
func (s *Service) Theme(ctx context.Context, name string) (*model.Theme, error) {
	if err := ValidateThemeName(name); err != nil {
		return nil, err
	}
	return s.findTheme(ctx, name)
}

// ThemeVersions returns the version batches of a theme, oldest first.
func (s *Service) ThemeVersions(ctx context.Context, name string) ([]*model.ThemeVersion, error) {
	if _, err := s.Theme(ctx, name); err != nil {
		return nil, err
	}
	versions, err := s.store.ListThemeVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", name, err)
	}
	return versions, nil
}

// BatchFiles returns the file versions recorded by one version batch,
// without content.
func (s *Service) BatchFiles(ctx context.Context, name, versionID string) ([]*model.ThemeFileVersion, error) {
	if _, err := s.findVersion(ctx, name, versionID); err != nil {
		return nil, err
	}
	files, err := s.store.ListBatchFileVersions(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("listing files of version %s: %w", versionID, err)
	}
	return files, nil
}

// ActiveTheme returns the theme currently served to visitors, or
// ErrNotFound if no theme has been activated yet.
func (s *Service) ActiveTheme(ctx context.Context) (*model.Theme, error) {
	active, err := s.store.ActiveThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading active theme: %w", err)
	}
	switch len(active) {
	case 0:
		return nil, fmt.Errorf("%w: no active theme", ErrNotFound)
	case 1:
		return active[0], nil
	default:
		return nil, fmt.Errorf("%w: %d themes flagged active", ErrStorage, len(active))
	}
}

func (s *Service) findTheme(ctx context.Context, name string) (*model.Theme, error) {
	theme, err := s.store.FindTheme(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding theme %s: %w", name, err)
	}
	if theme == nil {
		return nil, fmt.Errorf("%w: theme %s", ErrNotFound, name)
	}
	return theme, nil
}

func (s *Service) findVersion(ctx context.Context, name, versionID string) (*model.ThemeVersion, error) {
	if err := ValidateThemeName(name); err != nil {
		return nil, err
	}
	version, err := s.store.FindThemeVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("finding version %s: %w", versionID, err)
	}
	if version == nil || version.ThemeName != name {
		return nil, fmt.Errorf("%w: version %s of theme %s", ErrNotFound, versionID, name)
	}
	return version, nil
}
