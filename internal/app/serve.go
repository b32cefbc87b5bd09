package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"themesync/internal/api"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serve context is cancelled.
const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP surface until ctx is cancelled. The serve session is
// itself recorded as an operation so that Close snapshots whatever the
// requests changed.
func (a *ThemeApp) Serve(ctx context.Context) error {
	if err := a.persistOperation(ctx, map[string]string{"addr": a.cfg.Server.Addr()}); err != nil {
		return err
	}

	srv := api.NewServer(a.cfg.Server, a.service, a.store, a.logger)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return a.op.Fail(fmt.Errorf("http server: %w", err))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return a.op.Fail(fmt.Errorf("shutting down http server: %w", err))
	}
	a.logger.Info("http server stopped")
	return nil
}
