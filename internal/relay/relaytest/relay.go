// Package relaytest runs an in-memory NIP-01 relay for tests.
package relaytest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

// Relay verifies and fans out events like a public relay would. Ephemeral
// kinds are forwarded to live subscribers but never stored.
type Relay struct {
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	stored   []domain.Event
	received []domain.Event
	reject   string
	silent   bool
}

type client struct {
	ws   *websocket.Conn
	wmu  sync.Mutex
	mu   sync.Mutex
	subs map[string][]domain.Filter
}

type Option func(*Relay)

// Rejecting makes the relay answer every EVENT with OK false.
func Rejecting(reason string) Option { return func(r *Relay) { r.reject = reason } }

// Silent makes the relay accept events without ever sending OK.
func Silent() Option { return func(r *Relay) { r.silent = true } }

// New starts a relay that is shut down when the test ends.
func New(t testing.TB, opts ...Option) *Relay {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := &Relay{
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	for _, o := range opts {
		o(r)
	}

	engine := gin.New()
	engine.GET("/", r.serve)
	r.srv = httptest.NewServer(engine)
	r.URL = "ws" + strings.TrimPrefix(r.srv.URL, "http")
	t.Cleanup(r.Close)
	return r
}

// DeadURL returns a relay address on which nothing listens.
func DeadURL(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return "ws://" + addr
}

// Close disconnects every client and stops the server.
func (r *Relay) Close() {
	r.Disconnect()
	r.srv.Close()
}

// Disconnect drops all client connections while the server keeps running.
func (r *Relay) Disconnect() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[*client]struct{})
	r.mu.Unlock()
	for c := range clients {
		_ = c.ws.Close()
	}
}

// Events returns every event accepted so far, ephemeral ones included.
func (r *Relay) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.received...)
}

// SubscriptionCount is the number of open subscriptions across clients.
func (r *Relay) SubscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for c := range r.clients {
		c.mu.Lock()
		n += len(c.subs)
		c.mu.Unlock()
	}
	return n
}

// Inject delivers ev to matching subscribers without any validation,
// as a misbehaving relay would.
func (r *Relay) Inject(ev domain.Event) {
	r.broadcast(ev)
}

func (r *Relay) serve(ctx *gin.Context) {
	ws, err := r.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return
	}
	c := &client{ws: ws, subs: make(map[string][]domain.Filter)}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.clients, c)
		r.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		r.handle(c, data)
	}
}

func (r *Relay) handle(c *client, data []byte) {
	var msg []json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil || len(msg) < 2 {
		c.send("NOTICE", "invalid message")
		return
	}
	var label string
	_ = json.Unmarshal(msg[0], &label)

	switch label {
	case "EVENT":
		var ev domain.Event
		if err := json.Unmarshal(msg[1], &ev); err != nil {
			c.send("NOTICE", "invalid event")
			return
		}
		r.publish(c, ev)
	case "REQ":
		var id string
		_ = json.Unmarshal(msg[1], &id)
		filters := make([]domain.Filter, 0, len(msg)-2)
		for _, raw := range msg[2:] {
			var f domain.Filter
			if err := json.Unmarshal(raw, &f); err != nil {
				c.send("CLOSED", id, "invalid: filter")
				return
			}
			filters = append(filters, f)
		}
		c.mu.Lock()
		c.subs[id] = filters
		c.mu.Unlock()

		r.mu.Lock()
		stored := append([]domain.Event(nil), r.stored...)
		r.mu.Unlock()
		for _, ev := range stored {
			if matchesAny(filters, ev) {
				c.send("EVENT", id, ev)
			}
		}
		c.send("EOSE", id)
	case "CLOSE":
		var id string
		_ = json.Unmarshal(msg[1], &id)
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (r *Relay) publish(c *client, ev domain.Event) {
	if err := crypto.VerifyEvent(ev); err != nil {
		c.send("OK", ev.ID, false, "invalid: "+err.Error())
		return
	}
	r.mu.Lock()
	reject, silent := r.reject, r.silent
	if reject == "" {
		r.received = append(r.received, ev)
		if !ev.Kind.Ephemeral() {
			r.stored = append(r.stored, ev)
		}
	}
	r.mu.Unlock()

	if reject != "" {
		c.send("OK", ev.ID, false, reject)
		return
	}
	r.broadcast(ev)
	if !silent {
		c.send("OK", ev.ID, true, "")
	}
}

func (r *Relay) broadcast(ev domain.Event) {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		var ids []string
		for id, filters := range c.subs {
			if matchesAny(filters, ev) {
				ids = append(ids, id)
			}
		}
		c.mu.Unlock()
		for _, id := range ids {
			c.send("EVENT", id, ev)
		}
	}
}

func (c *client) send(msg ...any) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.WriteJSON(msg)
}

func matchesAny(filters []domain.Filter, ev domain.Event) bool {
	for _, f := range filters {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}
