// Package app wires configuration, persistence, transport, store, session and
// services into one client.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/chat-client/internal/client"
	"github.com/weiawesome/chat-client/internal/config"
	"github.com/weiawesome/chat-client/internal/gateway"
	"github.com/weiawesome/chat-client/internal/mirror"
	"github.com/weiawesome/chat-client/internal/service"
	"github.com/weiawesome/chat-client/internal/session"
	"github.com/weiawesome/chat-client/internal/store"
)

type App struct {
	Logger   zerolog.Logger
	Mirror   *mirror.Mirror
	Gateway  *gateway.Gateway
	Client   *client.Client
	Store    *store.Store
	Session  *session.Manager
	Rooms    *service.Rooms
	Messages *service.Messages
	Mentions *service.Mentions

	// Restore settles when the startup restore has finished. With a persisted
	// snapshot it may still be running when New returns.
	Restore *session.Restore
}

// New builds the client and bootstraps the session.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	m, err := mirror.Open(cfg.Mirror)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}

	gw, err := gateway.New(ctx, gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, m, logger)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	st := store.New(logger)
	c := client.New(gw)
	mgr := session.New(c, st, m, logger)
	c.SetUnauthorizedHandler(mgr.HandleUnauthorized)

	a := &App{
		Logger:   logger,
		Mirror:   m,
		Gateway:  gw,
		Client:   c,
		Store:    st,
		Session:  mgr,
		Rooms:    service.NewRooms(c, st),
		Messages: service.NewMessages(c, st),
		Mentions: service.NewMentions(c, st),
	}

	restore, err := mgr.Bootstrap(ctx)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to bootstrap session: %w", err)
	}
	a.Restore = restore

	logger.Debug().
		Str("api", cfg.API.BaseURL).
		Str("mirror", cfg.Mirror.Driver).
		Stringer("session", mgr.State()).
		Msg("client ready")
	return a, nil
}

// Sync refreshes the room list and, when someone is logged in, the mention
// list. Both requests run concurrently.
func (a *App) Sync(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Rooms.Fetch(ctx)
	})
	if _, ok := a.Session.CurrentUser(); ok {
		g.Go(func() error {
			return a.Mentions.Fetch(ctx)
		})
	}

	return g.Wait()
}

// Close releases the mirror.
func (a *App) Close() error {
	return a.Mirror.Close()
}
