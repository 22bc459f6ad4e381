package interfaces

import (
	"context"

	domaintypes "nsyte/internal/domain/types"
)

// SessionStore persists the established remote signing session.
//
// LoadSession reports absent (false, nil) for missing, corrupt or partial
// records; an error means the backend itself could not be reached.
type SessionStore interface {
	LoadSession(ctx context.Context) (domaintypes.Session, bool, error)
	SaveSession(ctx context.Context, session domaintypes.Session) error
	ClearSession(ctx context.Context) error
}

// HandshakeStore persists the pending pairing invitation.
type HandshakeStore interface {
	LoadHandshake(ctx context.Context) (domaintypes.PendingHandshake, bool, error)
	SaveHandshake(ctx context.Context, pending domaintypes.PendingHandshake) error
	ClearHandshake(ctx context.Context) error
}
