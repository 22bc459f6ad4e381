package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"nsyte/internal/domain"
)

var (
	// ErrBadEventID is returned when an event id does not match its content.
	ErrBadEventID = errors.New("event id does not match content")
	// ErrBadSignature is returned when an event signature fails verification.
	ErrBadSignature = errors.New("invalid event signature")
)

// EventID computes the id of an event authored by pub.
func EventID(pub domain.PublicKey, createdAt int64, kind domain.Kind, tags domain.Tags, content string) string {
	return SHA256Hex(serializeEvent(pub, createdAt, kind, tags, content))
}

// SignEvent turns tmpl into an event signed by sk.
func SignEvent(sk domain.SecretKey, tmpl domain.EventTemplate) (domain.Event, error) {
	priv, _ := btcec.PrivKeyFromBytes(sk.Slice())
	defer priv.Zero()

	tags := tmpl.Tags
	if tags == nil {
		tags = domain.Tags{}
	}
	ev := domain.Event{
		PubKey:    PublicKeyOf(sk),
		CreatedAt: tmpl.CreatedAt,
		Kind:      tmpl.Kind,
		Tags:      tags,
		Content:   tmpl.Content,
	}
	ev.ID = EventID(ev.PubKey, ev.CreatedAt, ev.Kind, ev.Tags, ev.Content)
	id, _ := hex.DecodeString(ev.ID)

	sig, err := schnorr.Sign(priv, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("sign event: %w", err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return ev, nil
}

// VerifyEvent checks the id and signature of ev.
func VerifyEvent(ev domain.Event) error {
	if EventID(ev.PubKey, ev.CreatedAt, ev.Kind, ev.Tags, ev.Content) != ev.ID {
		return ErrBadEventID
	}
	pub, err := ParsePublicKey(ev.PubKey)
	if err != nil {
		return err
	}
	rawSig, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return ErrBadSignature
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return ErrBadSignature
	}
	id, _ := hex.DecodeString(ev.ID)
	if !sig.Verify(id, pub) {
		return ErrBadSignature
	}
	return nil
}
