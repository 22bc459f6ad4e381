package nip44

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/util/memzero"
)

const (
	version      = 2
	nonceSize    = 32
	macSize      = 32
	minPlaintext = 1
	maxPlaintext = 65535

	minPayload = 132
	maxPayload = 87472
	minDecoded = 99
	maxDecoded = 65603
)

var (
	ErrUnsupportedVersion = errors.New("nip44: unsupported version")
	ErrInvalidPayload     = errors.New("nip44: invalid payload")
	ErrInvalidMAC         = errors.New("nip44: invalid mac")
	ErrInvalidPadding     = errors.New("nip44: invalid padding")
	ErrPlaintextSize      = errors.New("nip44: plaintext must be 1..65535 bytes")
)

var salt = []byte("nip44-v2")

// ConversationKey is the long-lived symmetric key shared by two parties.
type ConversationKey [32]byte

// GenerateConversationKey derives the key shared between sk and pub.
func GenerateConversationKey(sk domain.SecretKey, pub domain.PublicKey) (ConversationKey, error) {
	var out ConversationKey
	pk, err := crypto.ParsePublicKey(pub)
	if err != nil {
		return out, err
	}
	priv, _ := btcec.PrivKeyFromBytes(sk.Slice())
	defer priv.Zero()

	shared := btcec.GenerateSharedSecret(priv, pk)
	defer memzero.Zero(shared)

	prk := hkdf.Extract(sha256.New, shared, salt)
	copy(out[:], prk)
	memzero.Zero(prk)
	return out, nil
}

// Encrypt seals plaintext under key with a random nonce.
func Encrypt(key ConversationKey, plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	return encrypt(key, plaintext, nonce)
}

func encrypt(key ConversationKey, plaintext string, nonce [nonceSize]byte) (string, error) {
	padded, err := pad(plaintext)
	if err != nil {
		return "", err
	}
	chachaKey, chachaNonce, hmacKey, err := messageKeys(key, nonce)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(chachaKey)
	defer memzero.Zero(hmacKey)

	c, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", err
	}
	ciphertext := make([]byte, len(padded))
	c.XORKeyStream(ciphertext, padded)

	out := make([]byte, 0, 1+nonceSize+len(ciphertext)+macSize)
	out = append(out, version)
	out = append(out, nonce[:]...)
	out = append(out, ciphertext...)
	out = append(out, mac(hmacKey, nonce[:], ciphertext)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a payload produced by Encrypt.
func Decrypt(key ConversationKey, payload string) (string, error) {
	if payload == "" || payload[0] == '#' {
		return "", ErrUnsupportedVersion
	}
	if len(payload) < minPayload || len(payload) > maxPayload {
		return "", fmt.Errorf("%w: size %d", ErrInvalidPayload, len(payload))
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) < minDecoded || len(data) > maxDecoded {
		return "", fmt.Errorf("%w: decoded size %d", ErrInvalidPayload, len(data))
	}
	if data[0] != version {
		return "", ErrUnsupportedVersion
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[1:1+nonceSize])
	ciphertext := data[1+nonceSize : len(data)-macSize]
	gotMAC := data[len(data)-macSize:]

	chachaKey, chachaNonce, hmacKey, err := messageKeys(key, nonce)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(chachaKey)
	defer memzero.Zero(hmacKey)

	if !hmac.Equal(gotMAC, mac(hmacKey, nonce[:], ciphertext)) {
		return "", ErrInvalidMAC
	}

	c, err := chacha20.NewUnauthenticatedCipher(chachaKey, chachaNonce)
	if err != nil {
		return "", err
	}
	padded := make([]byte, len(ciphertext))
	c.XORKeyStream(padded, ciphertext)
	return unpad(padded)
}

func messageKeys(key ConversationKey, nonce [nonceSize]byte) (chachaKey, chachaNonce, hmacKey []byte, err error) {
	r := hkdf.Expand(sha256.New, key[:], nonce[:])
	buf := make([]byte, 76)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, nil, err
	}
	return buf[0:32], buf[32:44], buf[44:76], nil
}

func mac(key, nonce, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(nonce)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// paddedLen returns the bucket size a plaintext of n bytes is padded to.
func paddedLen(n int) int {
	if n <= 32 {
		return 32
	}
	nextPower := 1 << bits.Len(uint(n-1))
	chunk := 32
	if nextPower > 256 {
		chunk = nextPower / 8
	}
	return chunk * ((n-1)/chunk + 1)
}

func pad(plaintext string) ([]byte, error) {
	n := len(plaintext)
	if n < minPlaintext || n > maxPlaintext {
		return nil, ErrPlaintextSize
	}
	out := make([]byte, 2+paddedLen(n))
	binary.BigEndian.PutUint16(out, uint16(n))
	copy(out[2:], plaintext)
	return out, nil
}

func unpad(padded []byte) (string, error) {
	if len(padded) < 2 {
		return "", ErrInvalidPadding
	}
	n := int(binary.BigEndian.Uint16(padded))
	if n < minPlaintext || 2+n > len(padded) || len(padded) != 2+paddedLen(n) {
		return "", ErrInvalidPadding
	}
	return string(padded[2 : 2+n]), nil
}
