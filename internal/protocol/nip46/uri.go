package nip46

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

const (
	schemeConnect = "nostrconnect"
	schemeBunker  = "bunker"
)

// ConnectURI is a client-issued nostrconnect:// pairing invitation.
type ConnectURI struct {
	ClientKey domain.PublicKey
	Relays    []string
	Secret    string
	Name      string
	Perms     []string
}

// String renders the invitation in the form signer apps scan.
func (u ConnectURI) String() string {
	q := url.Values{}
	for _, r := range u.Relays {
		q.Add("relay", r)
	}
	if u.Secret != "" {
		q.Set("secret", u.Secret)
	}
	if u.Name != "" {
		q.Set("name", u.Name)
	}
	if len(u.Perms) > 0 {
		q.Set("perms", strings.Join(u.Perms, ","))
	}
	return schemeConnect + "://" + u.ClientKey.String() + "?" + q.Encode()
}

// BuildConnectURI validates its inputs and renders the invitation.
func BuildConnectURI(u ConnectURI) (string, error) {
	if !crypto.ValidPublicKey(u.ClientKey) {
		return "", fmt.Errorf("%w: bad client key", domain.ErrInvalidInvitation)
	}
	if len(u.Relays) == 0 {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInvitation, domain.ErrNoRelays)
	}
	if u.Secret == "" {
		return "", fmt.Errorf("%w: empty secret", domain.ErrInvalidInvitation)
	}
	return u.String(), nil
}

// ParseConnectURI is the inverse of ConnectURI.String.
func ParseConnectURI(raw string) (ConnectURI, error) {
	key, q, err := parseURI(raw, schemeConnect)
	if err != nil {
		return ConnectURI{}, err
	}
	out := ConnectURI{
		ClientKey: key,
		Relays:    q["relay"],
		Secret:    q.Get("secret"),
		Name:      q.Get("name"),
	}
	if p := q.Get("perms"); p != "" {
		out.Perms = strings.Split(p, ",")
	}
	if out.Secret == "" {
		return ConnectURI{}, fmt.Errorf("%w: missing secret", domain.ErrInvalidInvitation)
	}
	return out, nil
}

// BunkerURI is a signer-issued bunker:// connection string.
type BunkerURI struct {
	RemoteSigner domain.PublicKey
	Relays       []string
	Secret       string
}

// ParseBunkerURI parses bunker://<remote-signer>?relay=...&secret=...
func ParseBunkerURI(raw string) (BunkerURI, error) {
	key, q, err := parseURI(raw, schemeBunker)
	if err != nil {
		return BunkerURI{}, err
	}
	return BunkerURI{RemoteSigner: key, Relays: q["relay"], Secret: q.Get("secret")}, nil
}

func parseURI(raw, scheme string) (domain.PublicKey, url.Values, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidInvitation, err)
	}
	if u.Scheme != scheme {
		return "", nil, fmt.Errorf("%w: want %s:// got %q", domain.ErrInvalidInvitation, scheme, u.Scheme)
	}
	key := domain.PublicKey(strings.ToLower(u.Host))
	if !crypto.ValidPublicKey(key) {
		return "", nil, fmt.Errorf("%w: bad public key", domain.ErrInvalidInvitation)
	}
	q := u.Query()
	if len(q["relay"]) == 0 {
		return "", nil, fmt.Errorf("%w: %w", domain.ErrInvalidInvitation, domain.ErrNoRelays)
	}
	return key, q, nil
}

// NewSecret returns a random invitation secret.
func NewSecret() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
