package interfaces

import (
	"context"

	domaintypes "nsyte/internal/domain/types"
)

// Transport talks to a set of relays.
type Transport interface {
	// Publish sends event to every reachable relay and reports acceptance.
	Publish(
		ctx context.Context,
		relays []string,
		event domaintypes.Event,
	) (domaintypes.PublishResult, error)
	// Subscribe opens one merged subscription across relays.
	Subscribe(
		ctx context.Context,
		relays []string,
		filter domaintypes.Filter,
	) (Subscription, error)
	// Close drops cached connections. The transport stays usable.
	Close() error
}

// Subscription is a lazy stream of matching inbound events.
type Subscription interface {
	// Events yields verified, de-duplicated events. It is closed when every
	// relay backing the subscription has gone away.
	Events() <-chan domaintypes.Event
	// Close releases all per-relay resources. It is safe to call twice.
	Close()
}
