// SPDX-License-Identifier: MIT

package daemon

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xglog "github.com/sersery88/flight-ibe/internal/log"
)

// CredentialWarmer fetches a token ahead of the first request.
type CredentialWarmer interface {
	Check(ctx context.Context) error
}

// App owns the long-lived background work (credential warm-up) and
// delegates server management to Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	warmers []CredentialWarmer
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, warmers ...CredentialWarmer) *App {
	return &App{
		logger:  logger,
		manager: manager,
		warmers: warmers,
	}
}

// Run starts the server and the warm-up and blocks until ctx is cancelled or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Warm-up is best-effort: a failure here surfaces again on /readyz and on
	// the first request, never as a startup failure.
	for i, w := range a.warmers {
		g.Go(func() error {
			if err := w.Check(ctx); err != nil {
				a.logger.Warn().
					Err(err).
					Int("source_index", i).
					Str(xglog.FieldEvent, "credentials.warmup_failed").
					Msg("could not obtain an initial token")
				return nil
			}
			a.logger.Debug().
				Int("source_index", i).
				Str(xglog.FieldEvent, "credentials.warmup_ok").
				Msg("initial token obtained")
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
