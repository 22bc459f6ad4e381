package app_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nsyte/internal/app"
	"nsyte/internal/store"
)

func TestNewFileBackend(t *testing.T) {
	cfg, err := app.Load(t.TempDir())
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	require.IsType(t, &store.FileStore{}, a.Sessions)
	require.False(t, a.Signer.IsConnected())
	require.NotNil(t, a.Auth)
}

func TestNewRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := app.Defaults()
	cfg.Home = t.TempDir()
	cfg.StoreBackend = app.StoreRedis
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := app.New(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.IsType(t, &store.RedisStore{}, a.Sessions)
	require.False(t, a.Signer.IsConnected())
	require.NoError(t, a.Close())
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := app.Defaults()
	cfg.StoreBackend = app.StoreRedis
	cfg.RedisURL = "redis://" + addr
	_, err := app.New(context.Background(), cfg, zerolog.Nop(), nil)
	require.Error(t, err)
}
