package httpauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

const scheme = "Nostr"

// Authorizer attaches signed authorization headers to requests.
type Authorizer struct {
	signer domain.EventSigner
	now    func() time.Time
}

func New(signer domain.EventSigner) *Authorizer {
	return &Authorizer{signer: signer, now: time.Now}
}

// Header returns the Authorization header value for method on url. body may
// be nil; when present its sha256 is bound into the event.
func (a *Authorizer) Header(ctx context.Context, method, url string, body []byte) (string, error) {
	if !a.signer.IsConnected() {
		return "", domain.ErrNotConnected
	}
	tags := domain.Tags{
		{"u", url},
		{"method", strings.ToUpper(method)},
	}
	if len(body) > 0 {
		tags = append(tags, domain.Tag{"payload", crypto.SHA256Hex(body)})
	}
	ev, err := a.signer.SignEvent(ctx, domain.EventTemplate{
		Kind:      domain.KindHTTPAuth,
		CreatedAt: a.now().Unix(),
		Tags:      tags,
	})
	if err != nil {
		return "", fmt.Errorf("sign auth event: %w", err)
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return scheme + " " + crypto.B64(raw), nil
}

// Authorize sets the Authorization header on req. It fails closed: req is
// left untouched on any error.
func (a *Authorizer) Authorize(ctx context.Context, req *http.Request, body []byte) error {
	h, err := a.Header(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", h)
	return nil
}
