// Package nip46test provides a scripted remote signer for exercising NIP-46
// clients against relaytest relays.
package nip46test

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip04"
	"nsyte/internal/protocol/nip44"
	"nsyte/internal/protocol/nip46"
	"nsyte/internal/relay"
)

// RemoteSigner answers connect, get_public_key, sign_event and ping on
// behalf of a user key it holds.
type RemoteSigner struct {
	t         testing.TB
	transport *relay.Pool
	relays    []string

	key  domain.SecretKey
	user domain.SecretKey

	userPubOverride domain.PublicKey
	ignore          []string
	failures        map[string]string
	batch           int
	noise           bool
	legacy          bool
	authURL         string

	mu       sync.Mutex
	queue    []pending
	seen     []nip46.Request
	authSent map[string]bool
}

type pending struct {
	from domain.PublicKey
	req  nip46.Request
}

type Option func(*RemoteSigner)

// WithUserPubKey makes get_public_key return pub verbatim.
func WithUserPubKey(pub domain.PublicKey) Option {
	return func(s *RemoteSigner) { s.userPubOverride = pub }
}

// Ignoring makes the signer silently drop requests for methods.
func Ignoring(methods ...string) Option {
	return func(s *RemoteSigner) { s.ignore = append(s.ignore, methods...) }
}

// Failing makes method return an error response carrying message.
func Failing(method, message string) Option {
	return func(s *RemoteSigner) { s.failures[method] = message }
}

// Batching holds requests until n have arrived, then answers them newest
// first.
func Batching(n int) Option { return func(s *RemoteSigner) { s.batch = n } }

// Noisy makes the signer send undecryptable, malformed and mismatched
// replies ahead of each real one.
func Noisy() Option { return func(s *RemoteSigner) { s.noise = true } }

// Legacy makes the signer encrypt replies with NIP-04.
func Legacy() Option { return func(s *RemoteSigner) { s.legacy = true } }

// RequiringAuth answers the first sign_event of each request id with an
// auth_url challenge before the real result.
func RequiringAuth(url string) Option { return func(s *RemoteSigner) { s.authURL = url } }

// New creates a signer listening on relays. Call Start to begin serving.
func New(t testing.TB, relays []string, opts ...Option) *RemoteSigner {
	t.Helper()
	key, err := crypto.GenerateSecretKey()
	if err != nil {
		t.Fatalf("signer key: %v", err)
	}
	user, err := crypto.GenerateSecretKey()
	if err != nil {
		t.Fatalf("user key: %v", err)
	}
	s := &RemoteSigner{
		t:         t,
		transport: relay.NewPool(zerolog.Nop()),
		relays:    relays,
		key:       key,
		user:      user,
		failures:  make(map[string]string),
		authSent:  make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	t.Cleanup(func() { _ = s.transport.Close() })
	return s
}

func (s *RemoteSigner) PubKey() domain.PublicKey { return crypto.PublicKeyOf(s.key) }

// UserPubKey is the key sign_event signs with.
func (s *RemoteSigner) UserPubKey() domain.PublicKey { return crypto.PublicKeyOf(s.user) }

// Requests returns every request received so far.
func (s *RemoteSigner) Requests() []nip46.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]nip46.Request(nil), s.seen...)
}

// Start subscribes to requests and serves them until the test ends.
func (s *RemoteSigner) Start() {
	s.t.Helper()
	sub, err := s.transport.Subscribe(context.Background(), s.relays, domain.Filter{
		Kinds: []domain.Kind{domain.KindNostrConnect},
		Tags:  map[string][]string{"p": {s.PubKey().String()}},
	})
	if err != nil {
		s.t.Fatalf("signer subscribe: %v", err)
	}
	s.t.Cleanup(sub.Close)
	go func() {
		for ev := range sub.Events() {
			s.handle(ev)
		}
	}()
}

// AckInvitation accepts a nostrconnect:// invitation by replying with its
// secret on relays, or on the invitation's own relays when none are given.
func (s *RemoteSigner) AckInvitation(ctx context.Context, uri string, relays ...string) error {
	inv, err := nip46.ParseConnectURI(uri)
	if err != nil {
		return err
	}
	if len(relays) == 0 {
		relays = inv.Relays
	}
	return s.reply(ctx, inv.ClientKey, relays, nip46.Response{ID: uuid.NewString(), Result: inv.Secret})
}

// SendRaw publishes an arbitrary plaintext reply to client.
func (s *RemoteSigner) SendRaw(ctx context.Context, client domain.PublicKey, plaintext string) error {
	return s.publish(ctx, client, s.relays, plaintext)
}

func (s *RemoteSigner) handle(ev domain.Event) {
	c, err := nip46.NewCipher(s.key, ev.PubKey)
	if err != nil {
		return
	}
	plaintext, err := c.Decrypt(ev.Content)
	if err != nil {
		return
	}
	req, err := nip46.ParseRequest(plaintext)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.seen = append(s.seen, req)
	if slices.Contains(s.ignore, req.Method) {
		s.mu.Unlock()
		return
	}
	var ready []pending
	if s.batch > 1 {
		s.queue = append(s.queue, pending{from: ev.PubKey, req: req})
		if len(s.queue) < s.batch {
			s.mu.Unlock()
			return
		}
		ready = s.queue
		s.queue = nil
		slices.Reverse(ready)
	} else {
		ready = []pending{{from: ev.PubKey, req: req}}
	}
	s.mu.Unlock()

	for _, p := range ready {
		s.answer(p.from, p.req)
	}
}

func (s *RemoteSigner) answer(from domain.PublicKey, req nip46.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.noise {
		s.sendNoise(ctx, from, req)
	}

	if s.authURL != "" && req.Method == nip46.MethodSignEvent {
		s.mu.Lock()
		first := !s.authSent[req.ID]
		s.authSent[req.ID] = true
		s.mu.Unlock()
		if first {
			_ = s.reply(ctx, from, s.relays, nip46.Response{ID: req.ID, Result: "auth_url", Error: s.authURL})
		}
	}

	resp := nip46.Response{ID: req.ID}
	if msg, ok := s.failures[req.Method]; ok {
		resp.Error = msg
	} else {
		result, err := s.result(req)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
	}
	if err := s.reply(ctx, from, s.relays, resp); err != nil {
		s.t.Logf("signer reply: %v", err)
	}
}

func (s *RemoteSigner) result(req nip46.Request) (string, error) {
	switch req.Method {
	case nip46.MethodConnect:
		return "ack", nil
	case nip46.MethodPing:
		return "pong", nil
	case nip46.MethodGetPublicKey:
		if s.userPubOverride != "" {
			return s.userPubOverride.String(), nil
		}
		return s.UserPubKey().String(), nil
	case nip46.MethodSignEvent:
		if len(req.Params) != 1 {
			return "", fmt.Errorf("sign_event wants one param")
		}
		var tmpl domain.EventTemplate
		if err := json.Unmarshal([]byte(req.Params[0]), &tmpl); err != nil {
			return "", fmt.Errorf("bad event: %v", err)
		}
		ev, err := crypto.SignEvent(s.user, tmpl)
		if err != nil {
			return "", err
		}
		b, err := json.Marshal(ev)
		return string(b), err
	default:
		return "", fmt.Errorf("unsupported method %s", req.Method)
	}
}

func (s *RemoteSigner) sendNoise(ctx context.Context, to domain.PublicKey, req nip46.Request) {
	wrongID, _ := nip46.EncodeResponse(nip46.Response{ID: "not-" + req.ID, Result: "decoy"})
	_ = s.publish(ctx, to, s.relays, wrongID)
	_ = s.publish(ctx, to, s.relays, "this is not json")
	_ = s.publish(ctx, to, s.relays, `{"id":42,"result":"wrong type"}`)

	// Encrypted to some other key, so the client cannot open it.
	stranger, err := crypto.GenerateSecretKey()
	if err != nil {
		return
	}
	key, err := nip44.GenerateConversationKey(s.key, crypto.PublicKeyOf(stranger))
	if err != nil {
		return
	}
	decoy, _ := nip46.EncodeResponse(nip46.Response{ID: req.ID, Result: "forged"})
	content, err := nip44.Encrypt(key, decoy)
	if err != nil {
		return
	}
	ev, err := crypto.SignEvent(s.key, domain.EventTemplate{
		Kind:      domain.KindNostrConnect,
		CreatedAt: time.Now().Unix(),
		Tags:      domain.Tags{{"p", to.String()}},
		Content:   content,
	})
	if err == nil {
		_, _ = s.transport.Publish(ctx, s.relays, ev)
	}
}

func (s *RemoteSigner) reply(ctx context.Context, to domain.PublicKey, relays []string, resp nip46.Response) error {
	plaintext, err := nip46.EncodeResponse(resp)
	if err != nil {
		return err
	}
	return s.publish(ctx, to, relays, plaintext)
}

func (s *RemoteSigner) publish(ctx context.Context, to domain.PublicKey, relays []string, plaintext string) error {
	var ev domain.Event
	if s.legacy {
		content, err := nip04.Encrypt(s.key, to, plaintext)
		if err != nil {
			return err
		}
		ev, err = crypto.SignEvent(s.key, domain.EventTemplate{
			Kind:      domain.KindNostrConnect,
			CreatedAt: time.Now().Unix(),
			Tags:      domain.Tags{{"p", to.String()}},
			Content:   content,
		})
		if err != nil {
			return err
		}
	} else {
		c, err := nip46.NewCipher(s.key, to)
		if err != nil {
			return err
		}
		if ev, err = c.Seal(plaintext, time.Now()); err != nil {
			return err
		}
	}
	res, err := s.transport.Publish(ctx, relays, ev)
	if err != nil {
		return err
	}
	if res.Accepted == 0 {
		return domain.ErrNothingAccepted
	}
	return nil
}
