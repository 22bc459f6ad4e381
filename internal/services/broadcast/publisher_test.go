package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/relay"
	"nsyte/internal/relay/relaytest"
	"nsyte/internal/services/broadcast"
)

func events(t *testing.T, n int) []domain.Event {
	t.Helper()
	sk, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	out := make([]domain.Event, n)
	for i := range out {
		out[i], err = crypto.SignEvent(sk, domain.EventTemplate{
			Kind:      1,
			CreatedAt: time.Now().Unix(),
			Content:   "event " + string(rune('a'+i)),
		})
		require.NoError(t, err)
	}
	return out
}

func newPublisher(t *testing.T) *broadcast.Publisher {
	pool := relay.NewPool(zerolog.Nop(), relay.WithDialTimeout(time.Second))
	t.Cleanup(func() { _ = pool.Close() })
	return broadcast.New(pool, zerolog.Nop())
}

func TestPublishManyCountsKofN(t *testing.T) {
	a := relaytest.New(t)
	b := relaytest.New(t)
	relays := []string{a.URL, b.URL, relaytest.DeadURL(t)}

	res, err := newPublisher(t).PublishMany(context.Background(), relays, events(t, 3))
	require.NoError(t, err)
	require.Equal(t, 6, res.Accepted)
	require.Equal(t, 9, res.Attempted)
	require.Len(t, a.Events(), 3)
	require.Len(t, b.Events(), 3)
}

func TestPublishNothingReachable(t *testing.T) {
	res, err := newPublisher(t).Publish(context.Background(), []string{relaytest.DeadURL(t)}, events(t, 1)[0])
	require.ErrorIs(t, err, domain.ErrNothingAccepted)
	require.Equal(t, 0, res.Accepted)
	require.Equal(t, 1, res.Attempted)
}

func TestPublishAllRejected(t *testing.T) {
	r := relaytest.New(t, relaytest.Rejecting("blocked"))
	res, err := newPublisher(t).PublishMany(context.Background(), []string{r.URL}, events(t, 2))
	require.ErrorIs(t, err, domain.ErrNothingAccepted)
	require.Equal(t, 2, res.Attempted)
}

func TestPublishRejectsInvalidEventsUpfront(t *testing.T) {
	r := relaytest.New(t)
	evs := events(t, 2)
	evs[1].Content = "tampered"

	_, err := newPublisher(t).PublishMany(context.Background(), []string{r.URL}, evs)
	require.ErrorIs(t, err, crypto.ErrBadEventID)
	require.Empty(t, r.Events())
}

func TestPublishNoRelaysConfigured(t *testing.T) {
	_, err := newPublisher(t).Publish(context.Background(), nil, events(t, 1)[0])
	require.ErrorIs(t, err, domain.ErrNoRelays)
}
