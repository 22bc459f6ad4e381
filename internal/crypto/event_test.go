package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
)

func TestSignAndVerifyEvent(t *testing.T) {
	sk, err := crypto.GenerateSecretKey()
	require.NoError(t, err)

	ev, err := crypto.SignEvent(sk, domain.EventTemplate{
		Kind:      1,
		CreatedAt: 1700000000,
		Tags:      domain.Tags{{"t", "nsyte"}},
		Content:   "line one\nline \"two\" <html> & \\ \t",
	})
	require.NoError(t, err)
	require.Equal(t, crypto.PublicKeyOf(sk), ev.PubKey)
	require.Len(t, ev.ID, 64)
	require.Len(t, ev.Sig, 128)
	require.NoError(t, crypto.VerifyEvent(ev))
}

func TestVerifyEventDetectsTampering(t *testing.T) {
	sk, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	ev, err := crypto.SignEvent(sk, domain.EventTemplate{Kind: 1, CreatedAt: 1, Content: "hi"})
	require.NoError(t, err)

	changed := ev
	changed.Content = "bye"
	require.ErrorIs(t, crypto.VerifyEvent(changed), crypto.ErrBadEventID)

	other, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	forged, err := crypto.SignEvent(other, domain.EventTemplate{Kind: 1, CreatedAt: 1, Content: "hi"})
	require.NoError(t, err)
	ev.Sig = forged.Sig
	require.ErrorIs(t, crypto.VerifyEvent(ev), crypto.ErrBadSignature)
}

func TestEventIDIsDeterministic(t *testing.T) {
	pub := domain.PublicKey("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d")
	a := crypto.EventID(pub, 10, 1, domain.Tags{{"p", "x"}}, "hello")
	b := crypto.EventID(pub, 10, 1, domain.Tags{{"p", "x"}}, "hello")
	c := crypto.EventID(pub, 11, 1, domain.Tags{{"p", "x"}}, "hello")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestPublicKeyValidation(t *testing.T) {
	sk, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	require.True(t, crypto.ValidPublicKey(crypto.PublicKeyOf(sk)))
	require.False(t, crypto.ValidPublicKey("abc123"))
}

func TestFingerprint(t *testing.T) {
	require.Equal(t, "3bf0c63f..459d", crypto.Fingerprint("3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"))
	require.Equal(t, "abc", crypto.Fingerprint("abc"))
}

func TestEventIDKnownAnswer(t *testing.T) {
	// sha256 of the canonical array, computed by an independent encoder.
	id := crypto.EventID(
		"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
		1700000000,
		1,
		domain.Tags{
			{"t", "nostr"},
			{"e", "5c83da77af1dec6d7289834998ad7aafbd9e2191396d75ec3cc27f5a77226f36", "wss://relay.example.com/"},
		},
		"say \"hi\" <b>&amp;</b>\nbackslash \\ ünïcödé 🔑",
	)
	require.Equal(t, "05585af05655a730d9607af6211bd99ebff0101b67d83548c4b8e2c203ac3bc0", id)
}
