package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

// Publisher publishes signed events through a domain.Transport.
type Publisher struct {
	transport domain.Transport
	log       zerolog.Logger
}

func New(transport domain.Transport, log zerolog.Logger) *Publisher {
	return &Publisher{transport: transport, log: log.With().Str("component", "broadcast").Logger()}
}

// Publish sends one event to relays.
func (p *Publisher) Publish(ctx context.Context, relays []string, event domain.Event) (domain.PublishResult, error) {
	return p.PublishMany(ctx, relays, []domain.Event{event})
}

// PublishMany sends every event to every relay. Counts aggregate over
// events x relays. Unreachable relays count as attempted; the call fails
// with ErrNothingAccepted only when no relay took any event.
func (p *Publisher) PublishMany(ctx context.Context, relays []string, events []domain.Event) (domain.PublishResult, error) {
	var total domain.PublishResult
	if len(events) == 0 {
		return total, nil
	}
	if len(relays) == 0 {
		return total, domain.ErrNoRelays
	}
	for _, ev := range events {
		if err := crypto.VerifyEvent(ev); err != nil {
			return total, fmt.Errorf("event %s: %w", ev.ID, err)
		}
	}

	for _, ev := range events {
		res, err := p.transport.Publish(ctx, relays, ev)
		total.Add(res)
		switch {
		case errors.Is(err, domain.ErrNoRelays):
			p.log.Warn().Str("event", ev.ID).Msg("no relay reachable")
		case err != nil:
			return total, err
		}
		if ctx.Err() != nil {
			return total, context.Cause(ctx)
		}
		p.log.Info().
			Str("event", ev.ID).
			Int("kind", int(ev.Kind)).
			Int("accepted", res.Accepted).
			Int("attempted", res.Attempted).
			Msg("event published")
	}

	if total.Accepted == 0 {
		return total, fmt.Errorf("%w (0 of %d)", domain.ErrNothingAccepted, total.Attempted)
	}
	return total, nil
}
