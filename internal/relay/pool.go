package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"nsyte/internal/domain"
)

const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultPublishTimeout = 10 * time.Second
)

// Pool is a cache of relay connections implementing domain.Transport.
type Pool struct {
	log            zerolog.Logger
	dialer         *websocket.Dialer
	dialTimeout    time.Duration
	publishTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*conn
}

var _ domain.Transport = (*Pool)(nil)

type Option func(*Pool)

func WithDialTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.dialTimeout = d
		}
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.publishTimeout = d
		}
	}
}

func NewPool(log zerolog.Logger, opts ...Option) *Pool {
	p := &Pool{
		log:            log,
		dialTimeout:    DefaultDialTimeout,
		publishTimeout: DefaultPublishTimeout,
		conns:          make(map[string]*conn),
	}
	for _, o := range opts {
		o(p)
	}
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = p.dialTimeout
	p.dialer = &d
	return p
}

// Publish sends event to every relay and counts OK acceptances. It fails
// with ErrNoRelays only when none of the relays could be reached.
func (p *Pool) Publish(ctx context.Context, relays []string, event domain.Event) (domain.PublishResult, error) {
	urls, bad := dedupe(relays)
	res := domain.PublishResult{Attempted: len(urls) + len(bad)}
	for r, reason := range bad {
		res.Add(domain.PublishResult{Failures: map[string]string{r: reason}})
	}

	live, failed := p.connectAll(ctx, urls)
	for r, reason := range failed {
		res.Add(domain.PublishResult{Failures: map[string]string{r: reason}})
	}
	if len(live) == 0 {
		return res, noRelays(res.Failures)
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range live {
		wg.Add(1)
		go func(c *conn) {
			defer wg.Done()
			err := c.publish(ctx, event)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Str("event", event.ID).Msg("publish failed")
				res.Add(domain.PublishResult{Failures: map[string]string{c.url: err.Error()}})
				return
			}
			res.Accepted++
		}(c)
	}
	wg.Wait()

	p.log.Debug().
		Str("event", event.ID).
		Int("accepted", res.Accepted).
		Int("attempted", res.Attempted).
		Msg("published")
	return res, nil
}

// Subscribe opens one subscription id on every reachable relay.
func (p *Pool) Subscribe(ctx context.Context, relays []string, filter domain.Filter) (domain.Subscription, error) {
	urls, bad := dedupe(relays)
	live, failed := p.connectAll(ctx, urls)
	if len(live) == 0 {
		for r, reason := range bad {
			failed[r] = reason
		}
		return nil, noRelays(failed)
	}

	s := newSubscription(uuid.NewString(), filter, p.log)
	for _, c := range live {
		s.attach(c)
	}
	for _, c := range live {
		if err := c.subscribe(s); err != nil {
			c.log.Warn().Err(err).Msg("subscribe failed")
			s.detach(c.url)
		}
	}
	if s.live() == 0 {
		s.Close()
		return nil, domain.ErrNoRelays
	}
	go s.forward()
	return s, nil
}

// Close drops every cached connection. The pool stays usable.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*conn)
	p.mu.Unlock()
	for _, c := range conns {
		c.shutdown(nil)
	}
	return nil
}

func (p *Pool) connectAll(ctx context.Context, urls []string) ([]*conn, map[string]string) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		live   = make([]*conn, 0, len(urls))
		failed = make(map[string]string)
	)
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			c, err := p.conn(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.log.Warn().Err(err).Str("relay", u).Msg("relay unreachable")
				failed[u] = err.Error()
				return
			}
			live = append(live, c)
		}(u)
	}
	wg.Wait()
	return live, failed
}

// conn returns the cached live connection for url, dialling if needed.
func (p *Pool) conn(ctx context.Context, url string) (*conn, error) {
	p.mu.Lock()
	if c, ok := p.conns[url]; ok && c.alive() {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()
	ws, _, err := p.dialer.DialContext(dctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := newConn(url, ws, p.log, p.evict)

	p.mu.Lock()
	if existing, ok := p.conns[url]; ok && existing.alive() {
		p.mu.Unlock()
		_ = ws.Close()
		return existing, nil
	}
	p.conns[url] = c
	p.mu.Unlock()

	go c.readLoop()
	p.log.Debug().Str("relay", url).Msg("connected")
	return c, nil
}

func (p *Pool) evict(c *conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[c.url] == c {
		delete(p.conns, c.url)
	}
}

func noRelays(failures map[string]string) error {
	if len(failures) == 0 {
		return domain.ErrNoRelays
	}
	parts := make([]string, 0, len(failures))
	for r, reason := range failures {
		parts = append(parts, r+": "+reason)
	}
	sort.Strings(parts)
	return fmt.Errorf("%w (%s)", domain.ErrNoRelays, strings.Join(parts, "; "))
}
