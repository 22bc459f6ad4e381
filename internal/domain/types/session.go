package types

import "time"

// Session is the durable state needed to resume signing without repeating
// the handshake.
type Session struct {
	ClientSecret       SecretKey `json:"client_nsec"`
	RemoteSignerPubKey PublicKey `json:"remote_signer_pubkey"`
	UserPubKey         PublicKey `json:"user_pubkey"`
	Relays             []string  `json:"relays"`
	EstablishedAt      time.Time `json:"established_at"`
	// Permissions is the list requested in the invitation. NIP-46 signers
	// do not acknowledge permissions individually, so this is not a grant.
	Permissions        []string  `json:"permissions,omitempty"`
}

// Complete reports whether every field required to sign is present.
func (s Session) Complete() bool {
	return !s.ClientSecret.IsZero() && s.RemoteSignerPubKey != "" && s.UserPubKey != ""
}

// PendingHandshake is the state held between issuing an invitation and the
// remote signer acknowledging it.
type PendingHandshake struct {
	ClientSecret SecretKey `json:"client_nsec"`
	Secret       string    `json:"secret"`
	URI          string    `json:"uri"`
	Relays       []string  `json:"relays"`
	CreatedAt    time.Time `json:"created_at"`
}

// Complete reports whether the handshake can still be finished.
func (p PendingHandshake) Complete() bool {
	return !p.ClientSecret.IsZero() && p.Secret != "" && len(p.Relays) > 0
}

// Status is the externally visible connection summary.
type Status struct {
	Connected          bool      `json:"connected"`
	AlreadyConnected   bool      `json:"already_connected,omitempty"`
	UserPubKey         PublicKey `json:"user_pubkey,omitempty"`
	RemoteSignerPubKey PublicKey `json:"remote_signer_pubkey,omitempty"`
	Relays             []string  `json:"relays,omitempty"`
	EstablishedAt      time.Time `json:"established_at,omitempty"`
}

// Invitation is what a caller shows the user to start pairing.
type Invitation struct {
	URI       string    `json:"uri"`
	ClientKey PublicKey `json:"client_pubkey"`
	Relays    []string  `json:"relays"`
	CreatedAt time.Time `json:"created_at"`
}
