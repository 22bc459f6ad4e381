package relay

import (
	"sync"

	"github.com/rs/zerolog"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

const inboundBuffer = 256

// subscription fans events from several conns into one channel. Only the
// forward goroutine writes to or closes out.
type subscription struct {
	id     string
	filter domain.Filter
	log    zerolog.Logger

	inbound chan domain.Event
	out     chan domain.Event

	done      chan struct{}
	closeOnce sync.Once
	lost      chan struct{}
	lostOnce  sync.Once

	mu    sync.Mutex
	conns map[string]*conn
}

var _ domain.Subscription = (*subscription)(nil)

func newSubscription(id string, filter domain.Filter, log zerolog.Logger) *subscription {
	return &subscription{
		id:      id,
		filter:  filter,
		log:     log.With().Str("sub", id).Logger(),
		inbound: make(chan domain.Event, inboundBuffer),
		out:     make(chan domain.Event),
		done:    make(chan struct{}),
		lost:    make(chan struct{}),
		conns:   make(map[string]*conn),
	}
}

func (s *subscription) Events() <-chan domain.Event { return s.out }

// Close sends CLOSE to every backing relay. Safe to call twice.
func (s *subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conns := s.conns
		s.conns = make(map[string]*conn)
		s.mu.Unlock()
		for _, c := range conns {
			c.unsubscribe(s.id)
		}
	})
}

func (s *subscription) attach(c *conn) {
	s.mu.Lock()
	s.conns[c.url] = c
	s.mu.Unlock()
}

func (s *subscription) detach(url string) {
	s.mu.Lock()
	_, had := s.conns[url]
	delete(s.conns, url)
	empty := len(s.conns) == 0
	s.mu.Unlock()
	if had && empty {
		s.lostOnce.Do(func() { close(s.lost) })
	}
}

func (s *subscription) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// deliver runs on a conn's read goroutine.
func (s *subscription) deliver(from string, ev domain.Event) {
	if !s.filter.Matches(ev) {
		s.log.Debug().Str("relay", from).Str("event", ev.ID).Msg("dropping event outside filter")
		return
	}
	if err := crypto.VerifyEvent(ev); err != nil {
		s.log.Debug().Err(err).Str("relay", from).Str("event", ev.ID).Msg("dropping invalid event")
		return
	}
	select {
	case s.inbound <- ev:
	case <-s.done:
	case <-s.lost:
	}
}

func (s *subscription) forward() {
	defer close(s.out)
	seen := make(map[string]struct{})
	emit := func(ev domain.Event) bool {
		if _, dup := seen[ev.ID]; dup {
			return true
		}
		seen[ev.ID] = struct{}{}
		select {
		case s.out <- ev:
			return true
		case <-s.done:
			return false
		}
	}
	for {
		select {
		case ev := <-s.inbound:
			if !emit(ev) {
				return
			}
		case <-s.lost:
			for {
				select {
				case ev := <-s.inbound:
					if !emit(ev) {
						return
					}
				default:
					s.log.Debug().Msg("all relays gone")
					return
				}
			}
		case <-s.done:
			return
		}
	}
}
