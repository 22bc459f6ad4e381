package nip46

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

// clockSkew widens the since bound of response subscriptions so replies
// from a signer with a slightly slow clock are not filtered out.
const clockSkew = time.Minute

// Channel is a live request/response link to one remote signer.
type Channel struct {
	transport domain.Transport
	client    domain.SecretKey
	clientPub domain.PublicKey
	remote    domain.PublicKey
	relays    []string
	cipher    *Cipher
	log       zerolog.Logger
	now       func() time.Time

	// OnAuthURL is called when the signer asks the user to approve a
	// request in a browser. The call keeps waiting for the real reply.
	OnAuthURL func(url string)
}

func NewChannel(
	transport domain.Transport,
	client domain.SecretKey,
	remote domain.PublicKey,
	relays []string,
	log zerolog.Logger,
) (*Channel, error) {
	if len(relays) == 0 {
		return nil, domain.ErrNoRelays
	}
	c, err := NewCipher(client, remote)
	if err != nil {
		return nil, fmt.Errorf("remote signer key: %w", err)
	}
	return &Channel{
		transport: transport,
		client:    client,
		clientPub: crypto.PublicKeyOf(client),
		remote:    remote,
		relays:    append([]string(nil), relays...),
		cipher:    c,
		log:       log.With().Str("signer", crypto.Fingerprint(remote)).Logger(),
		now:       time.Now,
	}, nil
}

func (c *Channel) Remote() domain.PublicKey    { return c.remote }
func (c *Channel) ClientKey() domain.PublicKey { return c.clientPub }
func (c *Channel) Relays() []string            { return append([]string(nil), c.relays...) }

// Call sends method(params) and waits up to timeout for the matching reply.
// A zero timeout waits until ctx is done.
func (c *Channel) Call(ctx context.Context, method string, params []string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, domain.ErrTimeout)
		defer cancel()
	}

	id := uuid.NewString()
	plaintext, err := encodeRequest(Request{ID: id, Method: method, Params: params})
	if err != nil {
		return "", err
	}
	now := c.now()
	ev, err := c.cipher.Seal(plaintext, now)
	if err != nil {
		return "", fmt.Errorf("%s: seal request: %w", method, err)
	}

	// Replies are ephemeral; relays will not replay them to a late subscriber.
	sub, err := c.transport.Subscribe(ctx, c.relays, domain.Filter{
		Kinds:   []domain.Kind{domain.KindNostrConnect},
		Authors: []domain.PublicKey{c.remote},
		Tags:    map[string][]string{"p": {c.clientPub.String()}},
		Since:   now.Add(-clockSkew).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: subscribe: %w", method, err)
	}
	defer sub.Close()

	// Publish alongside the wait: a relay that never answers OK must not
	// hold back a reply another relay already delivered.
	published := make(chan publishOutcome, 1)
	pubCtx, stopPublish := context.WithCancel(ctx)
	defer stopPublish()
	go func() {
		res, err := c.transport.Publish(pubCtx, c.relays, ev)
		published <- publishOutcome{res: res, err: err}
	}()

	for {
		select {
		case <-ctx.Done():
			return "", waitError(ctx, method)
		case out := <-published:
			published = nil
			if ctx.Err() != nil {
				return "", waitError(ctx, method)
			}
			if out.err != nil {
				return "", fmt.Errorf("%s: publish: %w", method, out.err)
			}
			if out.res.Accepted == 0 {
				return "", fmt.Errorf("%s: publish: %w", method, domain.ErrNothingAccepted)
			}
			c.log.Debug().Str("method", method).Str("id", id).Int("relays", out.res.Accepted).Msg("request sent")
		case in, ok := <-sub.Events():
			if !ok {
				return "", fmt.Errorf("%s: %w", method, domain.ErrRelaysLost)
			}
			resp, ok := c.open(in)
			if !ok || resp.ID != id {
				continue
			}
			if url, ok := resp.AuthChallenge(); ok {
				c.log.Info().Str("method", method).Str("url", url).Msg("remote signer requires approval")
				if c.OnAuthURL != nil {
					c.OnAuthURL(url)
				}
				continue
			}
			if resp.Error != "" {
				return "", &domain.RemoteError{Method: method, Message: resp.Error}
			}
			return resp.Result, nil
		}
	}
}

type publishOutcome struct {
	res domain.PublishResult
	err error
}

func (c *Channel) open(ev domain.Event) (Response, bool) {
	if ev.PubKey != c.remote {
		return Response{}, false
	}
	plaintext, err := c.cipher.Decrypt(ev.Content)
	if err != nil {
		c.log.Debug().Err(err).Str("event", ev.ID).Msg("dropping undecryptable message")
		return Response{}, false
	}
	resp, err := ParseResponse(plaintext)
	if err != nil {
		c.log.Debug().Str("event", ev.ID).Msg("dropping malformed message")
		return Response{}, false
	}
	return resp, true
}

func waitError(ctx context.Context, method string) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, domain.ErrTimeout) {
		return fmt.Errorf("%s: %w", method, domain.ErrTimeout)
	}
	return fmt.Errorf("%s: %w", method, cause)
}

// GetPublicKey asks the signer which user key it signs for.
func (c *Channel) GetPublicKey(ctx context.Context, timeout time.Duration) (domain.PublicKey, error) {
	res, err := c.Call(ctx, MethodGetPublicKey, nil, timeout)
	if err != nil {
		return "", err
	}
	pub := domain.PublicKey(strings.TrimSpace(res))
	if pub == "" {
		return "", fmt.Errorf("%s: empty result", MethodGetPublicKey)
	}
	return pub, nil
}

// SignEvent has the signer sign tmpl and verifies what comes back.
func (c *Channel) SignEvent(ctx context.Context, tmpl domain.EventTemplate, timeout time.Duration) (domain.Event, error) {
	if tmpl.Tags == nil {
		tmpl.Tags = domain.Tags{}
	}
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return domain.Event{}, err
	}
	res, err := c.Call(ctx, MethodSignEvent, []string{string(raw)}, timeout)
	if err != nil {
		return domain.Event{}, err
	}
	var ev domain.Event
	if err := json.Unmarshal([]byte(res), &ev); err != nil {
		return domain.Event{}, fmt.Errorf("%s: decode result: %w", MethodSignEvent, err)
	}
	if ev.Kind != tmpl.Kind || ev.Content != tmpl.Content {
		return domain.Event{}, fmt.Errorf("%s: signer returned a different event", MethodSignEvent)
	}
	if err := crypto.VerifyEvent(ev); err != nil {
		return domain.Event{}, fmt.Errorf("%s: %w", MethodSignEvent, err)
	}
	return ev, nil
}

// Connect performs the client-initiated connect request used by bunker URIs.
func (c *Channel) Connect(ctx context.Context, secret string, perms []string, timeout time.Duration) error {
	params := []string{c.remote.String()}
	if secret != "" || len(perms) > 0 {
		params = append(params, secret)
	}
	if len(perms) > 0 {
		params = append(params, strings.Join(perms, ","))
	}
	res, err := c.Call(ctx, MethodConnect, params, timeout)
	if err != nil {
		return err
	}
	if res != "ack" && (secret == "" || res != secret) {
		return fmt.Errorf("%s: unexpected result %q", MethodConnect, res)
	}
	return nil
}

// Ping checks that the signer is reachable.
func (c *Channel) Ping(ctx context.Context, timeout time.Duration) error {
	res, err := c.Call(ctx, MethodPing, nil, timeout)
	if err != nil {
		return err
	}
	if res != "pong" {
		return fmt.Errorf("%s: unexpected result %q", MethodPing, res)
	}
	return nil
}
