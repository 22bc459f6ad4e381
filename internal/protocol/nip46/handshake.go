package nip46

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

// maxCachedCiphers bounds the per-author keys a Listener keeps; any author
// can p-tag the client key while an invitation is open.
const maxCachedCiphers = 16

// Listener waits for a remote signer to accept a pending invitation.
type Listener struct {
	sub     domain.Subscription
	pending domain.PendingHandshake
	log     zerolog.Logger
	ciphers map[domain.PublicKey]*Cipher
}

// Listen subscribes to traffic addressed to the pending client key. It must
// be called before the invitation is shown since acknowledgements are not
// stored by relays.
func Listen(
	ctx context.Context,
	transport domain.Transport,
	pending domain.PendingHandshake,
	log zerolog.Logger,
) (*Listener, error) {
	if !pending.Complete() {
		return nil, domain.ErrNoPendingHandshake
	}
	clientPub := crypto.PublicKeyOf(pending.ClientSecret)
	since := pending.CreatedAt.Add(-clockSkew).Unix()
	if pending.CreatedAt.IsZero() {
		since = 0
	}
	sub, err := transport.Subscribe(ctx, pending.Relays, domain.Filter{
		Kinds: []domain.Kind{domain.KindNostrConnect},
		Tags:  map[string][]string{"p": {clientPub.String()}},
		Since: since,
	})
	if err != nil {
		return nil, fmt.Errorf("handshake subscribe: %w", err)
	}
	return &Listener{
		sub:     sub,
		pending: pending,
		log:     log.With().Str("client", crypto.Fingerprint(clientPub)).Logger(),
		ciphers: make(map[domain.PublicKey]*Cipher),
	}, nil
}

// Wait blocks until an acknowledgement carrying the invitation secret
// arrives and returns the key of the signer that sent it.
func (l *Listener) Wait(ctx context.Context) (domain.PublicKey, error) {
	for {
		select {
		case <-ctx.Done():
			return "", waitError(ctx, "handshake")
		case ev, ok := <-l.sub.Events():
			if !ok {
				return "", fmt.Errorf("handshake: %w", domain.ErrRelaysLost)
			}
			if l.accepts(ev) {
				l.log.Info().Str("signer", crypto.Fingerprint(ev.PubKey)).Msg("invitation acknowledged")
				return ev.PubKey, nil
			}
		}
	}
}

func (l *Listener) accepts(ev domain.Event) bool {
	c, ok := l.ciphers[ev.PubKey]
	if !ok {
		var err error
		if c, err = NewCipher(l.pending.ClientSecret, ev.PubKey); err != nil {
			return false
		}
		if len(l.ciphers) < maxCachedCiphers {
			l.ciphers[ev.PubKey] = c
		}
	}
	plaintext, err := c.Decrypt(ev.Content)
	if err != nil {
		l.log.Debug().Str("event", ev.ID).Msg("dropping undecryptable message")
		return false
	}
	resp, err := ParseResponse(plaintext)
	if err != nil {
		return false
	}
	if resp.Result != l.pending.Secret {
		l.log.Debug().Str("event", ev.ID).Msg("ignoring response without invitation secret")
		return false
	}
	return true
}

func (l *Listener) Close() { l.sub.Close() }

// AwaitHandshake is Listen followed by Wait.
func AwaitHandshake(
	ctx context.Context,
	transport domain.Transport,
	pending domain.PendingHandshake,
	log zerolog.Logger,
) (domain.PublicKey, error) {
	l, err := Listen(ctx, transport, pending, log)
	if err != nil {
		return "", err
	}
	defer l.Close()
	return l.Wait(ctx)
}
