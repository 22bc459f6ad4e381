package nip04_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/protocol/nip04"
)

func TestRoundTrip(t *testing.T) {
	a, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	b, err := crypto.GenerateSecretKey()
	require.NoError(t, err)

	for _, msg := range []string{"", "hello", "exactly sixteen!", `{"id":"x","result":"ack"}`} {
		payload, err := nip04.Encrypt(a, crypto.PublicKeyOf(b), msg)
		require.NoError(t, err)
		require.True(t, nip04.LooksLike(payload))

		got, err := nip04.Decrypt(b, crypto.PublicKeyOf(a), payload)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	a, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	b, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	pub := crypto.PublicKeyOf(b)

	for _, payload := range []string{
		"no-iv-here",
		"!!!?iv=AAAAAAAAAAAAAAAAAAAAAA==",
		"AAAA?iv=short",
		"AAAAAAAAAAAAAAAAAAAA?iv=AAAAAAAAAAAAAAAAAAAAAA==",
	} {
		_, err := nip04.Decrypt(a, pub, payload)
		require.Error(t, err, payload)
	}
}

func TestWrongKeyDoesNotRecoverPlaintext(t *testing.T) {
	a, _ := crypto.GenerateSecretKey()
	b, _ := crypto.GenerateSecretKey()
	c, _ := crypto.GenerateSecretKey()

	payload, err := nip04.Encrypt(a, crypto.PublicKeyOf(b), "for b only")
	require.NoError(t, err)

	got, err := nip04.Decrypt(c, crypto.PublicKeyOf(a), payload)
	if err == nil {
		require.NotEqual(t, "for b only", got)
	}
}
