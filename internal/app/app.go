package app

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"nsyte/internal/domain"
	"nsyte/internal/relay"
	"nsyte/internal/services/broadcast"
	"nsyte/internal/services/httpauth"
	"nsyte/internal/services/signer"
)

// App bundles all stores, services and clients for the CLI.
type App struct {
	Config    Config
	Log       zerolog.Logger
	Sessions  domain.SessionStore
	Pendings  domain.HandshakeStore
	Transport *relay.Pool
	Publisher *broadcast.Publisher
	Signer    *signer.Service
	Auth      *httpauth.Authorizer

	closers []io.Closer
}

// Close releases relay connections and any backend clients.
func (a *App) Close() error {
	errs := []error{a.Transport.Close()}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
