package interfaces

import (
	"context"
	"time"

	domaintypes "nsyte/internal/domain/types"
)

// EventSigner produces signed events for the connected user.
type EventSigner interface {
	IsConnected() bool
	SignEvent(ctx context.Context, tmpl domaintypes.EventTemplate) (domaintypes.Event, error)
}

// SignerService is the public surface of the remote signing facade.
type SignerService interface {
	EventSigner

	Connect(ctx context.Context, relays []string) (domaintypes.Status, error)
	InitiateConnection(ctx context.Context, relays []string) (domaintypes.Invitation, error)
	CompleteConnection(ctx context.Context, timeout time.Duration) (domaintypes.Status, error)
	ConnectBunker(ctx context.Context, uri string) (domaintypes.Status, error)
	Status() domaintypes.Status
	GetPublicKey(ctx context.Context) (domaintypes.PublicKey, error)
	Disconnect() error

	Publish(ctx context.Context, event domaintypes.Event) (domaintypes.PublishResult, error)
	PublishMany(ctx context.Context, events []domaintypes.Event) (domaintypes.PublishResult, error)
}

// InvitationRenderer shows a pairing URI to the user, e.g. as a QR code.
type InvitationRenderer interface {
	RenderInvitation(uri string) error
}
