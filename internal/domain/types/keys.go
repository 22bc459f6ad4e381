package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	// SecretKeyPrefix is the bech32 human readable part of an encoded secret key.
	SecretKeyPrefix = "nsec"
	// PublicKeyPrefix is the bech32 human readable part of an encoded public key.
	PublicKeyPrefix = "npub"
)

// SecretKey is a secp256k1 private scalar.
//
// It never serialises as raw bytes: JSON carries the bech32 "nsec1..." form so
// stored records make their sensitive fields obvious.
type SecretKey [32]byte

// Slice returns the key as a []byte.
func (k SecretKey) Slice() []byte { return k[:] }

// IsZero reports whether the key is unset.
func (k SecretKey) IsZero() bool { return k == SecretKey{} }

// Nsec returns the bech32 encoding of the key.
func (k SecretKey) Nsec() string {
	s, err := encodeBech32(SecretKeyPrefix, k[:])
	if err != nil {
		return ""
	}
	return s
}

// String hides the key material.
func (k SecretKey) String() string { return "nsec1[redacted]" }

// MarshalJSON encodes the key as an nsec string.
func (k SecretKey) MarshalJSON() ([]byte, error) {
	if k.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(k.Nsec())
}

// UnmarshalJSON accepts an nsec string (or empty).
func (k *SecretKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = SecretKey{}
		return nil
	}
	parsed, err := ParseNsec(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseNsec decodes a bech32 nsec string.
func ParseNsec(s string) (SecretKey, error) {
	var out SecretKey
	b, err := decodeBech32(SecretKeyPrefix, s)
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("nsec: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}

// PublicKey is a hex encoded x-only secp256k1 public key, the identity form
// used on the wire.
type PublicKey string

// String returns the hex form.
func (p PublicKey) String() string { return string(p) }

// Bytes decodes the hex form. It fails for anything that is not 32 bytes.
func (p PublicKey) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(string(p))
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("public key: want 32 bytes, got %d", len(b))
	}
	return b, nil
}

// Npub returns the bech32 encoding, or "" when p is not a valid key.
func (p PublicKey) Npub() string {
	b, err := p.Bytes()
	if err != nil {
		return ""
	}
	s, err := encodeBech32(PublicKeyPrefix, b)
	if err != nil {
		return ""
	}
	return s
}

// ParseNpub decodes a bech32 npub string.
func ParseNpub(s string) (PublicKey, error) {
	b, err := decodeBech32(PublicKeyPrefix, s)
	if err != nil {
		return "", err
	}
	if len(b) != 32 {
		return "", fmt.Errorf("npub: want 32 bytes, got %d", len(b))
	}
	return PublicKey(hex.EncodeToString(b)), nil
}

func encodeBech32(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, conv)
}

func decodeBech32(wantHRP, s string) ([]byte, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wantHRP, err)
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("%s: unexpected prefix %q", wantHRP, hrp)
	}
	return bech32.ConvertBits(data, 5, 8, false)
}
