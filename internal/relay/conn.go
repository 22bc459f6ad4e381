package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"nsyte/internal/domain"
)

const (
	writeTimeout = 10 * time.Second
	maxMessage   = 4 << 20
)

var errConnClosed = errors.New("connection closed")

type okReply struct {
	accepted bool
	message  string
}

// conn is one websocket to one relay. A single goroutine reads; writes are
// serialised by wmu.
type conn struct {
	url string
	ws  *websocket.Conn
	log zerolog.Logger

	wmu sync.Mutex

	mu      sync.Mutex
	subs    map[string]*subscription
	waiters map[string][]chan okReply

	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*conn)
}

func newConn(url string, ws *websocket.Conn, log zerolog.Logger, onClose func(*conn)) *conn {
	ws.SetReadLimit(maxMessage)
	return &conn{
		url:     url,
		ws:      ws,
		log:     log.With().Str("relay", url).Logger(),
		subs:    make(map[string]*subscription),
		waiters: make(map[string][]chan okReply),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (c *conn) alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *conn) write(msg ...any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if !c.alive() {
		return errConnClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(msg)
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.dispatch(data)
	}
}

func (c *conn) dispatch(data []byte) {
	var msg []json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil || len(msg) < 2 {
		c.log.Debug().Msg("ignoring malformed relay message")
		return
	}
	var label string
	if err := json.Unmarshal(msg[0], &label); err != nil {
		return
	}

	switch label {
	case "EVENT":
		if len(msg) < 3 {
			return
		}
		var subID string
		var ev domain.Event
		if json.Unmarshal(msg[1], &subID) != nil || json.Unmarshal(msg[2], &ev) != nil {
			return
		}
		c.mu.Lock()
		s := c.subs[subID]
		c.mu.Unlock()
		if s != nil {
			s.deliver(c.url, ev)
		}
	case "OK":
		if len(msg) < 3 {
			return
		}
		var id string
		var reply okReply
		if json.Unmarshal(msg[1], &id) != nil || json.Unmarshal(msg[2], &reply.accepted) != nil {
			return
		}
		if len(msg) > 3 {
			_ = json.Unmarshal(msg[3], &reply.message)
		}
		c.mu.Lock()
		waiting := c.waiters[id]
		delete(c.waiters, id)
		c.mu.Unlock()
		for _, ch := range waiting {
			ch <- reply
		}
	case "EOSE":
		c.log.Trace().RawJSON("sub", msg[1]).Msg("end of stored events")
	case "CLOSED":
		var subID, reason string
		_ = json.Unmarshal(msg[1], &subID)
		if len(msg) > 2 {
			_ = json.Unmarshal(msg[2], &reason)
		}
		c.mu.Lock()
		s := c.subs[subID]
		delete(c.subs, subID)
		c.mu.Unlock()
		if s != nil {
			c.log.Warn().Str("reason", reason).Msg("relay closed subscription")
			s.detach(c.url)
		}
	case "NOTICE":
		var notice string
		_ = json.Unmarshal(msg[1], &notice)
		c.log.Info().Str("notice", notice).Msg("relay notice")
	}
}

// publish sends ev and waits for the relay's OK.
func (c *conn) publish(ctx context.Context, ev domain.Event) error {
	ch := make(chan okReply, 1)
	c.mu.Lock()
	c.waiters[ev.ID] = append(c.waiters[ev.ID], ch)
	c.mu.Unlock()
	defer c.dropWaiter(ev.ID, ch)

	if err := c.write("EVENT", ev); err != nil {
		return err
	}
	select {
	case r := <-ch:
		if !r.accepted {
			return fmt.Errorf("rejected: %s", r.message)
		}
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (c *conn) dropWaiter(id string, ch chan okReply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiting := c.waiters[id]
	for i, w := range waiting {
		if w == ch {
			waiting = append(waiting[:i], waiting[i+1:]...)
			break
		}
	}
	if len(waiting) == 0 {
		delete(c.waiters, id)
	} else {
		c.waiters[id] = waiting
	}
}

func (c *conn) subscribe(s *subscription) error {
	c.mu.Lock()
	if !c.alive() {
		c.mu.Unlock()
		return errConnClosed
	}
	c.subs[s.id] = s
	c.mu.Unlock()

	if err := c.write("REQ", s.id, s.filter); err != nil {
		c.mu.Lock()
		delete(c.subs, s.id)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *conn) unsubscribe(id string) {
	c.mu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok && c.alive() {
		if err := c.write("CLOSE", id); err != nil {
			c.log.Debug().Err(err).Msg("close subscription")
		}
	}
}

// shutdown closes the socket and detaches every subscription. Safe to call
// more than once.
func (c *conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()

		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[string]*subscription)
		c.mu.Unlock()

		if cause != nil {
			c.log.Warn().Err(cause).Msg("relay disconnected")
		}
		for _, s := range subs {
			s.detach(c.url)
		}
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}
