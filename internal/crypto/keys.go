package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"nsyte/internal/domain"
)

// GenerateSecretKey returns a fresh secp256k1 secret key.
func GenerateSecretKey() (domain.SecretKey, error) {
	var out domain.SecretKey
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return out, err
	}
	b := priv.Serialize()
	copy(out[:], b)
	priv.Zero()
	return out, nil
}

// PublicKeyOf derives the x-only public key of sk.
func PublicKeyOf(sk domain.SecretKey) domain.PublicKey {
	_, pub := btcec.PrivKeyFromBytes(sk.Slice())
	return domain.PublicKey(hex.EncodeToString(schnorr.SerializePubKey(pub)))
}

// ParsePublicKey lifts an x-only key onto the curve (even y).
func ParsePublicKey(pub domain.PublicKey) (*btcec.PublicKey, error) {
	b, err := pub.Bytes()
	if err != nil {
		return nil, err
	}
	pk, err := schnorr.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("public key %s: %w", Fingerprint(pub), err)
	}
	return pk, nil
}

// ValidPublicKey reports whether pub is a usable x-only key.
func ValidPublicKey(pub domain.PublicKey) bool {
	_, err := ParsePublicKey(pub)
	return err == nil
}
