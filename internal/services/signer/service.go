package signer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip46"
	"nsyte/internal/services/broadcast"
)

// Config holds the facade's tunables.
type Config struct {
	// Relays is used when a caller does not name any.
	Relays []string
	// BroadcastRelays receive published events. Empty means the session's
	// relays.
	BroadcastRelays  []string
	AppName          string
	Permissions      []string
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
}

const (
	DefaultHandshakeTimeout = 5 * time.Minute
	DefaultRequestTimeout   = 30 * time.Second
	DefaultAppName          = "nsyte"
)

// Service is the signing facade.
type Service struct {
	sessions  domain.SessionStore
	pendings  domain.HandshakeStore
	transport domain.Transport
	publisher *broadcast.Publisher
	renderer  domain.InvitationRenderer
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time

	// OnAuthURL receives approval URLs the remote signer sends back.
	OnAuthURL func(url string)

	mu      sync.Mutex
	session *domain.Session
	pending *domain.PendingHandshake
	channel *nip46.Channel
}

// New constructs the facade. renderer may be nil.
func New(
	sessions domain.SessionStore,
	pendings domain.HandshakeStore,
	transport domain.Transport,
	publisher *broadcast.Publisher,
	renderer domain.InvitationRenderer,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	return &Service{
		sessions:  sessions,
		pendings:  pendings,
		transport: transport,
		publisher: publisher,
		renderer:  renderer,
		cfg:       cfg,
		log:       log.With().Str("component", "signer").Logger(),
		now:       time.Now,
	}
}

// IsConnected reports whether a complete Session exists. It only consults
// the store, never the network.
func (s *Service) IsConnected() bool {
	_, ok := s.loadSession(context.Background())
	return ok
}

// Status summarises the current session.
func (s *Service) Status() domain.Status {
	sess, ok := s.loadSession(context.Background())
	if !ok {
		return domain.Status{}
	}
	return statusOf(sess)
}

// GetPublicKey returns the user key the session signs for.
func (s *Service) GetPublicKey(ctx context.Context) (domain.PublicKey, error) {
	sess, ok := s.loadSession(ctx)
	if !ok {
		return "", domain.ErrNotConnected
	}
	return sess.UserPubKey, nil
}

// Ping checks the remote signer answers on the session relays.
func (s *Service) Ping(ctx context.Context) error {
	ch, _, err := s.liveChannel(ctx)
	if err != nil {
		return err
	}
	return ch.Ping(ctx, s.cfg.RequestTimeout)
}

// SignEvent has the remote signer sign tmpl. A zero CreatedAt is set to now.
func (s *Service) SignEvent(ctx context.Context, tmpl domain.EventTemplate) (domain.Event, error) {
	ch, sess, err := s.liveChannel(ctx)
	if err != nil {
		return domain.Event{}, err
	}
	if tmpl.CreatedAt == 0 {
		tmpl.CreatedAt = s.now().Unix()
	}
	ev, err := ch.SignEvent(ctx, tmpl, s.cfg.RequestTimeout)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.PubKey != sess.UserPubKey {
		s.log.Warn().
			Str("expected", crypto.Fingerprint(sess.UserPubKey)).
			Str("got", crypto.Fingerprint(ev.PubKey)).
			Msg("signed event author differs from session user key")
	}
	return ev, nil
}

// Disconnect drops live handles and clears both persisted records. Transport
// close errors are logged and ignored.
func (s *Service) Disconnect() error {
	s.mu.Lock()
	s.session, s.pending, s.channel = nil, nil, nil
	s.mu.Unlock()

	if err := s.transport.Close(); err != nil {
		s.log.Debug().Err(err).Msg("closing transport")
	}
	ctx := context.Background()
	return errors.Join(s.sessions.ClearSession(ctx), s.pendings.ClearHandshake(ctx))
}

// Publish sends an already signed event to the broadcast relays.
func (s *Service) Publish(ctx context.Context, event domain.Event) (domain.PublishResult, error) {
	return s.PublishMany(ctx, []domain.Event{event})
}

// PublishMany sends events to the broadcast relays; counts aggregate across
// events x relays.
func (s *Service) PublishMany(ctx context.Context, events []domain.Event) (domain.PublishResult, error) {
	return s.publisher.PublishMany(ctx, s.broadcastRelays(ctx), events)
}

func (s *Service) broadcastRelays(ctx context.Context) []string {
	if len(s.cfg.BroadcastRelays) > 0 {
		return s.cfg.BroadcastRelays
	}
	if sess, ok := s.loadSession(ctx); ok {
		return sess.Relays
	}
	return s.cfg.Relays
}

// loadSession refreshes the cache from the store. A store that cannot be
// read leaves the cache as the best answer.
func (s *Service) loadSession(ctx context.Context) (domain.Session, bool) {
	sess, ok, err := s.sessions.LoadSession(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Msg("session store unavailable; using cached session")
		if s.session != nil {
			return *s.session, true
		}
		return domain.Session{}, false
	}
	if !ok {
		s.session, s.channel = nil, nil
		return domain.Session{}, false
	}
	if s.session == nil || !sameSession(*s.session, sess) {
		s.session, s.channel = &sess, nil
	}
	return sess, true
}

// liveChannel returns the cached channel or rebuilds it from the Session.
func (s *Service) liveChannel(ctx context.Context) (*nip46.Channel, domain.Session, error) {
	sess, ok := s.loadSession(ctx)
	if !ok {
		return nil, domain.Session{}, domain.ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		return s.channel, sess, nil
	}
	ch, err := s.newChannel(sess.ClientSecret, sess.RemoteSignerPubKey, sess.Relays)
	if err != nil {
		return nil, domain.Session{}, fmt.Errorf("restore session: %w", err)
	}
	s.channel = ch
	s.log.Debug().Str("signer", crypto.Fingerprint(sess.RemoteSignerPubKey)).Msg("channel restored from session")
	return ch, sess, nil
}

func (s *Service) newChannel(client domain.SecretKey, remote domain.PublicKey, relays []string) (*nip46.Channel, error) {
	ch, err := nip46.NewChannel(s.transport, client, remote, relays, s.log)
	if err != nil {
		return nil, err
	}
	ch.OnAuthURL = s.OnAuthURL
	return ch, nil
}

func sameSession(a, b domain.Session) bool {
	return a.ClientSecret == b.ClientSecret &&
		a.RemoteSignerPubKey == b.RemoteSignerPubKey &&
		a.UserPubKey == b.UserPubKey &&
		slices.Equal(a.Relays, b.Relays)
}

func statusOf(sess domain.Session) domain.Status {
	return domain.Status{
		Connected:          true,
		UserPubKey:         sess.UserPubKey,
		RemoteSignerPubKey: sess.RemoteSignerPubKey,
		Relays:             append([]string(nil), sess.Relays...),
		EstablishedAt:      sess.EstablishedAt,
	}
}

// Compile-time assertion that Service implements domain.SignerService.
var _ domain.SignerService = (*Service)(nil)
