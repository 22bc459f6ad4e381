package nip44_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip44"
)

// Published NIP-44 v2 test vectors; other implementations must agree on
// these bytes for signer apps to interoperate.

func secretKey(t *testing.T, s string) domain.SecretKey {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	require.Len(t, b, 32)
	var sk domain.SecretKey
	copy(sk[:], b)
	return sk
}

func TestConversationKeyVectors(t *testing.T) {
	cases := []struct {
		name string
		sec1 string
		pub2 domain.PublicKey
		want string
	}{
		{
			name: "random keys",
			sec1: "315e59ff51cb9209768cf7da80791ddcaae56ac9775eb25b6dee1234bc5d2268",
			pub2: "c2f9d9948dc8c7c38321e4b85c8558872eafa0641cd269db76848a6073e69133",
			want: "3dfef0ce2a4d80a25e7a328accf73448ef67096f65f79588e358d9a0eb9013f1",
		},
		{
			name: "sk 1 with pub of sk 2",
			sec1: "0000000000000000000000000000000000000000000000000000000000000001",
			pub2: crypto.PublicKeyOf(secretKey(t, "0000000000000000000000000000000000000000000000000000000000000002")),
			want: "c41c775356fd92eadc63ff5a0dc1da211b268cbea22316767095b2871ea1412d",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := nip44.GenerateConversationKey(secretKey(t, tc.sec1), tc.pub2)
			require.NoError(t, err)
			require.Equal(t, tc.want, hex.EncodeToString(key[:]))
		})
	}
}

func TestEncryptVector(t *testing.T) {
	const payload = "AgAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABee0G5VSK0/9YypIObAtDKfYEAjD35uVkHyB0F4DwrcNaCXlCWZKaArsGrY6M9wnuTMxWfp1RTN9Xga8no+kF5Vsb"

	sk1 := secretKey(t, "0000000000000000000000000000000000000000000000000000000000000001")
	sk2 := secretKey(t, "0000000000000000000000000000000000000000000000000000000000000002")
	key, err := nip44.GenerateConversationKey(sk1, crypto.PublicKeyOf(sk2))
	require.NoError(t, err)

	var nonce [32]byte
	nonce[31] = 1
	got, err := nip44.EncryptWithNonce(key, "a", nonce)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	reverse, err := nip44.GenerateConversationKey(sk2, crypto.PublicKeyOf(sk1))
	require.NoError(t, err)
	plain, err := nip44.Decrypt(reverse, payload)
	require.NoError(t, err)
	require.Equal(t, "a", plain)
}
