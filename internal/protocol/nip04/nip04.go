// Package nip04 implements the legacy NIP-04 payload format. It is kept only
// so responses from older remote signers can still be read.
package nip04

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/util/memzero"
)

var ErrInvalidPayload = errors.New("nip04: invalid payload")

// SharedSecret is the raw ECDH x coordinate used as the AES-256 key.
func SharedSecret(sk domain.SecretKey, pub domain.PublicKey) ([]byte, error) {
	pk, err := crypto.ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	priv, _ := btcec.PrivKeyFromBytes(sk.Slice())
	defer priv.Zero()
	return btcec.GenerateSharedSecret(priv, pk), nil
}

// LooksLike reports whether payload has the "<ct>?iv=<iv>" shape.
func LooksLike(payload string) bool {
	return strings.Contains(payload, "?iv=")
}

// Encrypt seals plaintext for pub.
func Encrypt(sk domain.SecretKey, pub domain.PublicKey, plaintext string) (string, error) {
	key, err := SharedSecret(sk, pub)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append([]byte(plaintext), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return base64.StdEncoding.EncodeToString(ct) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt opens a payload sent by pub to sk.
func Decrypt(sk domain.SecretKey, pub domain.PublicKey, payload string) (string, error) {
	ctB64, ivB64, ok := strings.Cut(payload, "?iv=")
	if !ok {
		return "", ErrInvalidPayload
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", ErrInvalidPayload
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrInvalidPayload
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrInvalidPayload
	}

	key, err := SharedSecret(sk, pub)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	padLen := int(out[len(out)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(out) {
		return "", ErrInvalidPayload
	}
	for _, b := range out[len(out)-padLen:] {
		if int(b) != padLen {
			return "", ErrInvalidPayload
		}
	}
	return string(out[:len(out)-padLen]), nil
}
