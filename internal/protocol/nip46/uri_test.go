package nip46_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip46"
)

func TestConnectURIRoundTrip(t *testing.T) {
	sk, err := crypto.GenerateSecretKey()
	require.NoError(t, err)

	relaySets := [][]string{
		{"wss://relay.a"},
		{"wss://relay.a", "wss://relay.b"},
		{"wss://relay.nsec.app/path?x=1", "ws://localhost:7777", "wss://relay.a"},
	}
	for _, relays := range relaySets {
		secret, err := nip46.NewSecret()
		require.NoError(t, err)

		in := nip46.ConnectURI{
			ClientKey: crypto.PublicKeyOf(sk),
			Relays:    relays,
			Secret:    secret,
			Name:      "nsyte & co",
			Perms:     []string{"sign_event:1", "get_public_key"},
		}
		raw, err := nip46.BuildConnectURI(in)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(raw, "nostrconnect://"+in.ClientKey.String()+"?"))

		out, err := nip46.ParseConnectURI(raw)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestBuildConnectURIValidates(t *testing.T) {
	sk, _ := crypto.GenerateSecretKey()
	pub := crypto.PublicKeyOf(sk)

	_, err := nip46.BuildConnectURI(nip46.ConnectURI{ClientKey: pub, Secret: "s"})
	require.ErrorIs(t, err, domain.ErrInvalidInvitation)
	require.ErrorIs(t, err, domain.ErrNoRelays)

	_, err = nip46.BuildConnectURI(nip46.ConnectURI{ClientKey: pub, Relays: []string{"wss://r"}})
	require.ErrorIs(t, err, domain.ErrInvalidInvitation)

	_, err = nip46.BuildConnectURI(nip46.ConnectURI{ClientKey: "zz", Relays: []string{"wss://r"}, Secret: "s"})
	require.ErrorIs(t, err, domain.ErrInvalidInvitation)
}

func TestParseConnectURIRejects(t *testing.T) {
	sk, _ := crypto.GenerateSecretKey()
	pub := crypto.PublicKeyOf(sk).String()

	for _, raw := range []string{
		"bunker://" + pub + "?relay=wss%3A%2F%2Fr&secret=s",
		"nostrconnect://" + pub + "?secret=s",
		"nostrconnect://" + pub + "?relay=wss%3A%2F%2Fr",
		"nostrconnect://nothex?relay=wss%3A%2F%2Fr&secret=s",
		"::::",
	} {
		_, err := nip46.ParseConnectURI(raw)
		require.ErrorIs(t, err, domain.ErrInvalidInvitation, raw)
	}
}

func TestParseBunkerURI(t *testing.T) {
	sk, _ := crypto.GenerateSecretKey()
	pub := crypto.PublicKeyOf(sk)

	b, err := nip46.ParseBunkerURI("bunker://" + pub.String() + "?relay=wss://relay.a&relay=wss://relay.b&secret=xyz")
	require.NoError(t, err)
	require.Equal(t, pub, b.RemoteSigner)
	require.Equal(t, []string{"wss://relay.a", "wss://relay.b"}, b.Relays)
	require.Equal(t, "xyz", b.Secret)

	b, err = nip46.ParseBunkerURI("bunker://" + pub.String() + "?relay=wss://relay.a")
	require.NoError(t, err)
	require.Empty(t, b.Secret)

	_, err = nip46.ParseBunkerURI("bunker://" + pub.String())
	require.ErrorIs(t, err, domain.ErrInvalidInvitation)
}
