// Package app constructs the client's stores once per process and hands
// them to whatever front end drives them.
package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"storefront/internal/authclient"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/jobs"
	"storefront/internal/session"
	"storefront/internal/storage"
)

type App struct {
	Config  *config.AppConfig
	Log     zerolog.Logger
	Storage storage.Storage
	Session *session.Store
	Cart    *cart.Store

	scheduler *jobs.Scheduler
}

// New opens the configured storage, talks to the configured backend and
// restores persisted state.
func New(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*App, error) {
	st, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	auth := authclient.New(cfg.API.BaseURL, cfg.API.Timeout, log)

	a, err := NewWithDeps(ctx, cfg, log, st, auth)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDeps builds the app around an existing storage and authenticator.
// Corrupt persisted state never fails startup; the affected store starts
// empty and the problem is logged.
func NewWithDeps(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger, st storage.Storage, auth session.Authenticator) (*App, error) {
	a := &App{
		Config:  cfg,
		Log:     log,
		Storage: st,
		Session: session.NewStore(st, auth, cfg.Session.AdminEmail, log),
		Cart:    cart.NewStore(st, log, cart.WithStrict(cfg.Cart.Strict)),
	}

	if err := a.Session.Restore(ctx); err != nil {
		var corrupt *session.CorruptStateError
		if !errors.As(err, &corrupt) {
			return nil, err
		}
		log.Warn().Err(err).Msg("starting logged out")
	}
	if err := a.Cart.Restore(ctx); err != nil {
		return nil, err
	}

	a.scheduler = jobs.NewScheduler(a.Session, cfg.Session.ExpiryCheck, log)
	return a, nil
}

// Start launches background jobs. Short-lived front ends such as the CLI
// may skip it.
func (a *App) Start() error {
	return a.scheduler.Start()
}

func (a *App) Close() error {
	<-a.scheduler.Stop().Done()
	return a.Storage.Close()
}
