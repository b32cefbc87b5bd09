package themesync

import (
	"context"
	"fmt"
)

// ActivationResult is the successful outcome of Activate.
type ActivationResult string

const (
	// Activated means the target became the active theme.
	Activated ActivationResult = "activated"

	// AlreadyActive means the target was already active and nothing changed.
	AlreadyActive ActivationResult = "already_active"
)

// Activate makes the named theme the single active theme. The previous
// active theme is deactivated in the same transaction, after every theme
// row has been locked, so concurrent activations serialize and readers
// see either the old or the new active theme.
//
// Lock contention the store cannot resolve surfaces as ErrConflict; the
// call left nothing behind and may be retried.
func (s *Service) Activate(ctx context.Context, name, actor string) (ActivationResult, error) {
	if err := ValidateThemeName(name); err != nil {
		return "", err
	}
	if err := validateActor(actor); err != nil {
		return "", err
	}

	var result ActivationResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.LockAllThemes(ctx); err != nil {
			return fmt.Errorf("locking themes: %w", err)
		}

		theme, err := tx.LockTheme(ctx, name)
		if err != nil {
			return fmt.Errorf("locking theme: %w", err)
		}
		if theme == nil {
			return fmt.Errorf("%w: theme %s", ErrNotFound, name)
		}
		if theme.Active {
			result = AlreadyActive
			return nil
		}

		if err := tx.SetActiveTheme(ctx, name, actor, s.clock.Now()); err != nil {
			return fmt.Errorf("switching active theme: %w", err)
		}
		result = Activated
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("activating theme %s: %w", name, err)
	}

	if result == Activated {
		s.logger.Info("theme activated", "theme", name, "actor", actor)
	}
	return result, nil
}
