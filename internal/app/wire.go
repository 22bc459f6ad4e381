package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"nsyte/internal/domain"
	"nsyte/internal/relay"
	"nsyte/internal/services/broadcast"
	"nsyte/internal/services/httpauth"
	"nsyte/internal/services/signer"
	"nsyte/internal/store"
)

// New constructs the dependency graph from cfg. renderer may be nil.
func New(ctx context.Context, cfg Config, log zerolog.Logger, renderer domain.InvitationRenderer) (*App, error) {
	a := &App{Config: cfg, Log: log}

	// Persistence: both records live in the same backend.
	switch cfg.StoreBackend {
	case StoreRedis:
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix, log)
		if err != nil {
			return nil, err
		}
		rs.WithPendingTTL(cfg.HandshakeTimeout * 2)
		a.Sessions, a.Pendings = rs, rs
		a.closers = append(a.closers, rs)
	case StoreFile, "":
		fs := store.NewFileStore(cfg.Home, log)
		a.Sessions, a.Pendings = fs, fs
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.StoreBackend)
	}

	// Relay transport logs at its own level.
	a.Transport = relay.NewPool(
		componentLogger(log, "relay", cfg.RelayLogLevel),
		relay.WithDialTimeout(cfg.DialTimeout),
		relay.WithPublishTimeout(cfg.PublishTimeout),
	)

	a.Publisher = broadcast.New(a.Transport, log)
	a.Signer = signer.New(a.Sessions, a.Pendings, a.Transport, a.Publisher, renderer, signer.Config{
		Relays:           cfg.Relays,
		BroadcastRelays:  cfg.BroadcastRelays,
		AppName:          cfg.AppName,
		Permissions:      cfg.Permissions,
		HandshakeTimeout: cfg.HandshakeTimeout,
		RequestTimeout:   cfg.RequestTimeout,
	}, log)
	a.Auth = httpauth.New(a.Signer)
	return a, nil
}

var _ io.Closer = (*App)(nil)
