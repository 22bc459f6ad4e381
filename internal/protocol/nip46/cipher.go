package nip46

import (
	"time"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip04"
	"nsyte/internal/protocol/nip44"
)

// Cipher encrypts traffic between one local key and one peer.
type Cipher struct {
	local domain.SecretKey
	peer  domain.PublicKey
	key   nip44.ConversationKey
}

func NewCipher(local domain.SecretKey, peer domain.PublicKey) (*Cipher, error) {
	key, err := nip44.GenerateConversationKey(local, peer)
	if err != nil {
		return nil, err
	}
	return &Cipher{local: local, peer: peer, key: key}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	return nip44.Encrypt(c.key, plaintext)
}

// Decrypt accepts NIP-44 payloads and, for older signers, NIP-04 ones.
func (c *Cipher) Decrypt(payload string) (string, error) {
	if nip04.LooksLike(payload) {
		return nip04.Decrypt(c.local, c.peer, payload)
	}
	return nip44.Decrypt(c.key, payload)
}

// Seal encrypts plaintext and wraps it in a signed kind 24133 envelope
// addressed to the peer.
func (c *Cipher) Seal(plaintext string, at time.Time) (domain.Event, error) {
	content, err := c.Encrypt(plaintext)
	if err != nil {
		return domain.Event{}, err
	}
	return crypto.SignEvent(c.local, domain.EventTemplate{
		Kind:      domain.KindNostrConnect,
		CreatedAt: at.Unix(),
		Tags:      domain.Tags{{"p", c.peer.String()}},
		Content:   content,
	})
}
