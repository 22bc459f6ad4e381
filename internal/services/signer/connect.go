package signer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip46"
)

// Connect runs the one-step pairing flow.
//
// Steps:
//  1. Short-circuit if a session already exists.
//  2. Generate a client key and invitation secret and persist them.
//  3. Subscribe for the acknowledgement, then render the invitation.
//  4. Wait up to HandshakeTimeout, then resolve the user key and persist
//     the Session.
func (s *Service) Connect(ctx context.Context, relays []string) (domain.Status, error) {
	if sess, ok := s.loadSession(ctx); ok {
		st := statusOf(sess)
		st.AlreadyConnected = true
		return st, nil
	}

	pending, err := s.newPending(ctx, relays)
	if err != nil {
		return domain.Status{}, err
	}

	// Acknowledgements are ephemeral: listen before anyone can scan.
	l, err := nip46.Listen(ctx, s.transport, pending, s.log)
	if err != nil {
		s.clearPending(ctx, pending)
		return domain.Status{}, err
	}
	if err := s.render(pending.URI); err != nil {
		l.Close()
		s.clearPending(ctx, pending)
		return domain.Status{}, err
	}
	return s.finish(ctx, pending, l, s.cfg.HandshakeTimeout)
}

// InitiateConnection persists a new invitation and returns it without
// waiting. An older unfinished invitation is replaced.
func (s *Service) InitiateConnection(ctx context.Context, relays []string) (domain.Invitation, error) {
	if sess, ok := s.loadSession(ctx); ok {
		return domain.Invitation{}, fmt.Errorf("%w (user %s)", domain.ErrAlreadyConnected, sess.UserPubKey.Npub())
	}

	pending, err := s.newPending(ctx, relays)
	if err != nil {
		return domain.Invitation{}, err
	}
	if err := s.render(pending.URI); err != nil {
		s.clearPending(ctx, pending)
		return domain.Invitation{}, err
	}
	return domain.Invitation{
		URI:       pending.URI,
		ClientKey: crypto.PublicKeyOf(pending.ClientSecret),
		Relays:    pending.Relays,
		CreatedAt: pending.CreatedAt,
	}, nil
}

// CompleteConnection waits for the pending invitation to be acknowledged.
// The pending record is cleared whatever the outcome.
func (s *Service) CompleteConnection(ctx context.Context, timeout time.Duration) (domain.Status, error) {
	if sess, ok := s.loadSession(ctx); ok {
		st := statusOf(sess)
		st.AlreadyConnected = true
		return st, nil
	}
	pending, ok := s.loadPending(ctx)
	if !ok {
		return domain.Status{}, domain.ErrNoPendingHandshake
	}
	if timeout <= 0 {
		timeout = s.cfg.HandshakeTimeout
	}

	l, err := nip46.Listen(ctx, s.transport, pending, s.log)
	if err != nil {
		s.clearPending(ctx, pending)
		return domain.Status{}, err
	}
	return s.finish(ctx, pending, l, timeout)
}

// ConnectBunker pairs using a signer-issued bunker:// URI.
func (s *Service) ConnectBunker(ctx context.Context, uri string) (domain.Status, error) {
	if sess, ok := s.loadSession(ctx); ok {
		st := statusOf(sess)
		st.AlreadyConnected = true
		return st, nil
	}
	b, err := nip46.ParseBunkerURI(uri)
	if err != nil {
		return domain.Status{}, err
	}
	client, err := crypto.GenerateSecretKey()
	if err != nil {
		return domain.Status{}, err
	}
	ch, err := s.newChannel(client, b.RemoteSigner, b.Relays)
	if err != nil {
		return domain.Status{}, err
	}
	if err := ch.Connect(ctx, b.Secret, s.cfg.Permissions, s.cfg.HandshakeTimeout); err != nil {
		return domain.Status{}, err
	}
	return s.establish(ctx, ch, client, b.RemoteSigner, b.Relays)
}

func (s *Service) finish(
	ctx context.Context,
	pending domain.PendingHandshake,
	l *nip46.Listener,
	timeout time.Duration,
) (domain.Status, error) {
	defer s.clearPending(ctx, pending)

	wctx, cancel := context.WithTimeoutCause(ctx, timeout, domain.ErrTimeout)
	remote, err := l.Wait(wctx)
	cancel()
	l.Close()
	if err != nil {
		s.log.Info().Err(err).Msg("pairing did not complete")
		return domain.Status{}, err
	}

	ch, err := s.newChannel(pending.ClientSecret, remote, pending.Relays)
	if err != nil {
		return domain.Status{}, err
	}
	return s.establish(ctx, ch, pending.ClientSecret, remote, pending.Relays)
}

// establish resolves the user key and persists the Session. A failing
// get_public_key falls back to the remote signer key.
func (s *Service) establish(
	ctx context.Context,
	ch *nip46.Channel,
	client domain.SecretKey,
	remote domain.PublicKey,
	relays []string,
) (domain.Status, error) {
	user, err := ch.GetPublicKey(ctx, s.cfg.RequestTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Status{}, err
		}
		s.log.Warn().Err(err).
			Str("signer", crypto.Fingerprint(remote)).
			Msg("get_public_key failed; using remote signer key as user key")
		user = remote
	}

	sess := domain.Session{
		ClientSecret:       client,
		RemoteSignerPubKey: remote,
		UserPubKey:         user,
		Relays:             append([]string(nil), relays...),
		EstablishedAt:      s.now().UTC(),
		Permissions:        slices.Clone(s.cfg.Permissions),
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return domain.Status{}, fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.session, s.channel = &sess, ch
	s.mu.Unlock()

	s.log.Info().
		Str("user", crypto.Fingerprint(user)).
		Str("signer", crypto.Fingerprint(remote)).
		Int("relays", len(relays)).
		Msg("connected to remote signer")
	return statusOf(sess), nil
}

func (s *Service) newPending(ctx context.Context, relays []string) (domain.PendingHandshake, error) {
	relays = s.pickRelays(relays)
	if len(relays) == 0 {
		return domain.PendingHandshake{}, domain.ErrNoRelays
	}
	client, err := crypto.GenerateSecretKey()
	if err != nil {
		return domain.PendingHandshake{}, err
	}
	secret, err := nip46.NewSecret()
	if err != nil {
		return domain.PendingHandshake{}, err
	}
	uri, err := nip46.BuildConnectURI(nip46.ConnectURI{
		ClientKey: crypto.PublicKeyOf(client),
		Relays:    relays,
		Secret:    secret,
		Name:      s.cfg.AppName,
		Perms:     s.cfg.Permissions,
	})
	if err != nil {
		return domain.PendingHandshake{}, err
	}
	pending := domain.PendingHandshake{
		ClientSecret: client,
		Secret:       secret,
		URI:          uri,
		Relays:       relays,
		CreatedAt:    s.now().UTC(),
	}

	if old, ok := s.loadPending(ctx); ok {
		s.log.Info().
			Time("created_at", old.CreatedAt).
			Msg("replacing unfinished invitation")
	}
	if err := s.pendings.SaveHandshake(ctx, pending); err != nil {
		return domain.PendingHandshake{}, fmt.Errorf("save pending handshake: %w", err)
	}
	s.mu.Lock()
	s.pending = &pending
	s.mu.Unlock()
	return pending, nil
}

// loadPending prefers the in-memory copy and falls back to the store.
func (s *Service) loadPending(ctx context.Context) (domain.PendingHandshake, bool) {
	s.mu.Lock()
	if s.pending != nil {
		p := *s.pending
		s.mu.Unlock()
		return p, true
	}
	s.mu.Unlock()

	p, ok, err := s.pendings.LoadHandshake(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("pending handshake store unavailable")
		return domain.PendingHandshake{}, false
	}
	return p, ok
}

// clearPending removes pending unless a newer invitation has replaced it.
func (s *Service) clearPending(ctx context.Context, pending domain.PendingHandshake) {
	s.mu.Lock()
	if s.pending != nil && s.pending.Secret == pending.Secret {
		s.pending = nil
	}
	s.mu.Unlock()

	// The caller's ctx may already be done; clearing must still happen.
	ctx = context.WithoutCancel(ctx)
	stored, ok, err := s.pendings.LoadHandshake(ctx)
	if err == nil && ok && stored.Secret != pending.Secret {
		return
	}
	if err := s.pendings.ClearHandshake(ctx); err != nil {
		s.log.Warn().Err(err).Msg("clear pending handshake")
	}
}

func (s *Service) pickRelays(relays []string) []string {
	if len(relays) == 0 {
		relays = s.cfg.Relays
	}
	out := make([]string, 0, len(relays))
	for _, r := range relays {
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) render(uri string) error {
	if s.renderer == nil {
		return nil
	}
	if err := s.renderer.RenderInvitation(uri); err != nil {
		return fmt.Errorf("render invitation: %w", err)
	}
	return nil
}
