package themesync

import (
	"context"
	"fmt"

	"themesync/internal/model"
)

// Publish marks one version batch of a theme live and stamps its
// published_at. The previously live batch of the theme loses the flag.
func (s *Service) Publish(ctx context.Context, name, versionID, actor string) (*model.ThemeVersion, error) {
	return s.promote(ctx, name, versionID, actor, "published", func(tx Tx) error {
		return tx.SetLiveVersion(ctx, name, versionID, s.clock.Now())
	})
}

// Preview marks one version batch of a theme as its preview candidate.
func (s *Service) Preview(ctx context.Context, name, versionID, actor string) (*model.ThemeVersion, error) {
	return s.promote(ctx, name, versionID, actor, "previewed", func(tx Tx) error {
		return tx.SetPreviewVersion(ctx, name, versionID)
	})
}

func (s *Service) promote(ctx context.Context, name, versionID, actor, verb string, apply func(Tx) error) (*model.ThemeVersion, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.findVersion(ctx, name, versionID); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx Tx) error {
		theme, err := tx.LockTheme(ctx, name)
		if err != nil {
			return fmt.Errorf("locking theme: %w", err)
		}
		if theme == nil {
			return fmt.Errorf("%w: theme %s", ErrNotFound, name)
		}
		return apply(tx)
	})
	if err != nil {
		return nil, fmt.Errorf("promoting version %s of %s: %w", versionID, name, err)
	}

	version, err := s.findVersion(ctx, name, versionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("version "+verb, "theme", name, "version", version.Label, "actor", actor)
	return version, nil
}
