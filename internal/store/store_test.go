package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/store"
)

type backend interface {
	domain.SessionStore
	domain.HandshakeStore
}

type corrupter func(t *testing.T, which, content string)

func backends(t *testing.T) map[string]func(t *testing.T) (backend, corrupter) {
	return map[string]func(t *testing.T) (backend, corrupter){
		"file": func(t *testing.T) (backend, corrupter) {
			dir := t.TempDir()
			s := store.NewFileStore(dir, zerolog.Nop())
			return s, func(t *testing.T, which, content string) {
				path := s.SessionPath()
				if which == "pending" {
					path = s.PendingPath()
				}
				require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			}
		},
		"redis": func(t *testing.T) (backend, corrupter) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			s := store.NewRedisStoreWithClient(client, "test:", zerolog.Nop())
			return s, func(t *testing.T, which, content string) {
				require.NoError(t, mr.Set("test:"+which, content))
			}
		},
	}
}

func sampleSession(t *testing.T) domain.Session {
	t.Helper()
	client, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	remote, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	return domain.Session{
		ClientSecret:       client,
		RemoteSignerPubKey: crypto.PublicKeyOf(remote),
		UserPubKey:         "abc123",
		Relays:             []string{"wss://relay.a", "wss://relay.b"},
		EstablishedAt:      time.Unix(1_700_000_000, 0).UTC(),
		Permissions:        []string{"sign_event"},
	}
}

func samplePending(t *testing.T) domain.PendingHandshake {
	t.Helper()
	client, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	return domain.PendingHandshake{
		ClientSecret: client,
		Secret:       "s3cret",
		URI:          "nostrconnect://x",
		Relays:       []string{"wss://relay.a"},
		CreatedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("absent is not an error", func(t *testing.T) {
				s, _ := mk(t)
				_, ok, err := s.LoadSession(ctx)
				require.NoError(t, err)
				require.False(t, ok)
				_, ok, err = s.LoadHandshake(ctx)
				require.NoError(t, err)
				require.False(t, ok)
				require.NoError(t, s.ClearSession(ctx))
				require.NoError(t, s.ClearHandshake(ctx))
			})

			t.Run("session round trip", func(t *testing.T) {
				s, _ := mk(t)
				want := sampleSession(t)
				require.NoError(t, s.SaveSession(ctx, want))

				got, ok, err := s.LoadSession(ctx)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, want, got)

				require.NoError(t, s.ClearSession(ctx))
				_, ok, err = s.LoadSession(ctx)
				require.NoError(t, err)
				require.False(t, ok)
			})

			t.Run("incomplete session is refused", func(t *testing.T) {
				s, _ := mk(t)
				partial := sampleSession(t)
				partial.RemoteSignerPubKey = ""
				require.ErrorIs(t, s.SaveSession(ctx, partial), domain.ErrIncompleteSession)
				_, ok, err := s.LoadSession(ctx)
				require.NoError(t, err)
				require.False(t, ok)
			})

			t.Run("records are independent", func(t *testing.T) {
				s, _ := mk(t)
				require.NoError(t, s.SaveSession(ctx, sampleSession(t)))
				require.NoError(t, s.SaveHandshake(ctx, samplePending(t)))

				require.NoError(t, s.ClearHandshake(ctx))
				_, ok, err := s.LoadSession(ctx)
				require.NoError(t, err)
				require.True(t, ok)
			})

			t.Run("pending round trip", func(t *testing.T) {
				s, _ := mk(t)
				want := samplePending(t)
				require.NoError(t, s.SaveHandshake(ctx, want))
				got, ok, err := s.LoadHandshake(ctx)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, want, got)
			})

			t.Run("corrupt records load as absent", func(t *testing.T) {
				s, corrupt := mk(t)
				for _, content := range []string{
					"{not json",
					`{"client_nsec":"nsec1garbage"}`,
					`{"remote_signer_pubkey":"aa","user_pubkey":"bb"}`,
				} {
					corrupt(t, "session", content)
					_, ok, err := s.LoadSession(ctx)
					require.NoError(t, err, content)
					require.False(t, ok, content)

					corrupt(t, "pending", content)
					_, ok, err = s.LoadHandshake(ctx)
					require.NoError(t, err, content)
					require.False(t, ok, content)
				}

				// Next save heals it.
				require.NoError(t, s.SaveSession(ctx, sampleSession(t)))
				_, ok, err := s.LoadSession(ctx)
				require.NoError(t, err)
				require.True(t, ok)
			})
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "home")
	s := store.NewFileStore(dir, zerolog.Nop())
	sess := sampleSession(t)
	require.NoError(t, s.SaveSession(context.Background(), sess))

	require.Equal(t, filepath.Join(dir, "bunker_session.json"), s.SessionPath())
	info, err := os.Stat(s.SessionPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(s.SessionPath())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"client_nsec": "nsec1`)
	require.Contains(t, string(raw), sess.ClientSecret.Nsec())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files left behind")
}

func TestRedisPendingTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := store.NewRedisStoreWithClient(client, "", zerolog.Nop()).WithPendingTTL(time.Minute)

	require.NoError(t, s.SaveHandshake(context.Background(), samplePending(t)))
	require.True(t, mr.Exists(store.DefaultRedisPrefix+"pending"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := s.LoadHandshake(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRedisStoreBadURL(t *testing.T) {
	_, err := store.NewRedisStore(context.Background(), "not-a-url", "", zerolog.Nop())
	require.Error(t, err)
}
