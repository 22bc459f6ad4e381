package nip46_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"nsyte/internal/crypto"
	"nsyte/internal/domain"
	"nsyte/internal/protocol/nip46"
	"nsyte/internal/protocol/nip46/nip46test"
	"nsyte/internal/relay"
	"nsyte/internal/relay/relaytest"
)

type fixture struct {
	relays []string
	signer *nip46test.RemoteSigner
	pool   *relay.Pool
	ch     *nip46.Channel
}

func setup(t *testing.T, opts ...nip46test.Option) fixture {
	t.Helper()
	a := relaytest.New(t)
	b := relaytest.New(t)
	relays := []string{a.URL, b.URL}

	signer := nip46test.New(t, relays, opts...)
	signer.Start()

	pool := relay.NewPool(zerolog.Nop())
	t.Cleanup(func() { _ = pool.Close() })

	client, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	ch, err := nip46.NewChannel(pool, client, signer.PubKey(), relays, zerolog.Nop())
	require.NoError(t, err)

	// Let the signer's subscription reach both relays.
	require.Eventually(t, func() bool {
		return a.SubscriptionCount() == 1 && b.SubscriptionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	return fixture{relays: relays, signer: signer, pool: pool, ch: ch}
}

func TestCallPing(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ch.Ping(context.Background(), 5*time.Second))
}

func TestGetPublicKey(t *testing.T) {
	f := setup(t)
	pub, err := f.ch.GetPublicKey(context.Background(), 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, f.signer.UserPubKey(), pub)
}

func TestSignEventVerifiesResult(t *testing.T) {
	f := setup(t)
	tmpl := domain.EventTemplate{Kind: 1, CreatedAt: time.Now().Unix(), Content: "hello", Tags: domain.Tags{{"t", "nsyte"}}}

	ev, err := f.ch.SignEvent(context.Background(), tmpl, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, f.signer.UserPubKey(), ev.PubKey)
	require.Equal(t, "hello", ev.Content)
	require.NoError(t, crypto.VerifyEvent(ev))
}

func TestCallRemoteError(t *testing.T) {
	f := setup(t, nip46test.Failing(nip46.MethodSignEvent, "user declined"))

	_, err := f.ch.SignEvent(context.Background(), domain.EventTemplate{Kind: 1, Content: "x"}, 5*time.Second)
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "user declined", remote.Message)
	require.Equal(t, nip46.MethodSignEvent, remote.Method)
	require.NotErrorIs(t, err, domain.ErrTimeout)
}

func TestCallTimesOutOnSilence(t *testing.T) {
	f := setup(t, nip46test.Ignoring(nip46.MethodPing))

	start := time.Now()
	err := f.ch.Ping(context.Background(), 300*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Less(t, time.Since(start), 3*time.Second)
}

func TestCallIgnoresNoiseAndTimesOut(t *testing.T) {
	// Noise is sent before the real reply, which never comes.
	f := setup(t, nip46test.Noisy(), nip46test.Ignoring(nip46.MethodGetPublicKey))
	_, err := f.ch.GetPublicKey(context.Background(), 500*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrTimeout)
}

func TestCallSkipsNoiseBeforeRealReply(t *testing.T) {
	f := setup(t, nip46test.Noisy())
	pub, err := f.ch.GetPublicKey(context.Background(), 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, f.signer.UserPubKey(), pub)
}

func TestCallCallerCancelIsNotTimeout(t *testing.T) {
	f := setup(t, nip46test.Ignoring(nip46.MethodPing))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := f.ch.Ping(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, domain.ErrTimeout))
}

func TestConcurrentCallsResolveIndependently(t *testing.T) {
	f := setup(t, nip46test.Batching(2))

	var wg sync.WaitGroup
	results := make([]domain.Event, 2)
	errs := make([]error, 2)
	for i, content := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()
			results[i], errs[i] = f.ch.SignEvent(context.Background(), domain.EventTemplate{
				Kind: 1, CreatedAt: time.Now().Unix(), Content: content,
			}, 5*time.Second)
		}(i, content)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, "first", results[0].Content)
	require.Equal(t, "second", results[1].Content)
}

func TestLegacyEncryptedReplies(t *testing.T) {
	f := setup(t, nip46test.Legacy())
	require.NoError(t, f.ch.Ping(context.Background(), 5*time.Second))
}

func TestAuthChallengeKeepsWaiting(t *testing.T) {
	f := setup(t, nip46test.RequiringAuth("https://signer.example/approve"))

	var mu sync.Mutex
	var urls []string
	f.ch.OnAuthURL = func(u string) {
		mu.Lock()
		urls = append(urls, u)
		mu.Unlock()
	}

	ev, err := f.ch.SignEvent(context.Background(), domain.EventTemplate{Kind: 1, Content: "needs approval"}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "needs approval", ev.Content)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"https://signer.example/approve"}, urls)
}

func TestConnectRequest(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ch.Connect(context.Background(), "s3cret", []string{"sign_event"}, 5*time.Second))

	reqs := f.signer.Requests()
	require.NotEmpty(t, reqs)
	last := reqs[len(reqs)-1]
	require.Equal(t, nip46.MethodConnect, last.Method)
	require.Equal(t, []string{f.signer.PubKey().String(), "s3cret", "sign_event"}, last.Params)
}

func TestCallFailsWhenNoRelayReachable(t *testing.T) {
	pool := relay.NewPool(zerolog.Nop(), relay.WithDialTimeout(time.Second))
	client, _ := crypto.GenerateSecretKey()
	remote, _ := crypto.GenerateSecretKey()
	ch, err := nip46.NewChannel(pool, client, crypto.PublicKeyOf(remote), []string{relaytest.DeadURL(t)}, zerolog.Nop())
	require.NoError(t, err)

	err = ch.Ping(context.Background(), time.Second)
	require.ErrorIs(t, err, domain.ErrNoRelays)
}

func quietRelaySetup(t *testing.T, second *relaytest.Relay) (*nip46.Channel, *nip46test.RemoteSigner) {
	t.Helper()
	a := relaytest.New(t)
	relays := []string{a.URL, second.URL}

	signer := nip46test.New(t, relays)
	signer.Start()
	require.Eventually(t, func() bool {
		return a.SubscriptionCount() == 1 && second.SubscriptionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	pool := relay.NewPool(zerolog.Nop(), relay.WithPublishTimeout(5*time.Second))
	t.Cleanup(func() { _ = pool.Close() })
	client, err := crypto.GenerateSecretKey()
	require.NoError(t, err)
	ch, err := nip46.NewChannel(pool, client, signer.PubKey(), relays, zerolog.Nop())
	require.NoError(t, err)
	return ch, signer
}

func TestCallDoesNotWaitForSilentRelay(t *testing.T) {
	ch, signer := quietRelaySetup(t, relaytest.New(t, relaytest.Silent()))

	start := time.Now()
	pub, err := ch.GetPublicKey(context.Background(), 4*time.Second)
	require.NoError(t, err)
	require.Equal(t, signer.UserPubKey(), pub)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestCallFailsWhenEveryRelayRejects(t *testing.T) {
	pool := relay.NewPool(zerolog.Nop())
	t.Cleanup(func() { _ = pool.Close() })
	a := relaytest.New(t, relaytest.Rejecting("blocked: no ephemeral"))
	b := relaytest.New(t, relaytest.Rejecting("blocked: no ephemeral"))
	client, _ := crypto.GenerateSecretKey()
	remote, _ := crypto.GenerateSecretKey()
	ch, err := nip46.NewChannel(pool, client, crypto.PublicKeyOf(remote), []string{a.URL, b.URL}, zerolog.Nop())
	require.NoError(t, err)

	start := time.Now()
	err = ch.Ping(context.Background(), 5*time.Second)
	require.ErrorIs(t, err, domain.ErrNothingAccepted)
	require.NotErrorIs(t, err, domain.ErrTimeout)
	require.Less(t, time.Since(start), 3*time.Second)
}
