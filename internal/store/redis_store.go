package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"nsyte/internal/domain"
)

const DefaultRedisPrefix = "nsyte:bunker:"

// RedisStore keeps both records in Redis, for hosts where several short
// lived processes share one signing session.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	pendingTTL time.Duration
	log        zerolog.Logger
}

// NewRedisStore connects to url (redis://...) and pings it.
func NewRedisStore(ctx context.Context, url, prefix string, log zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, prefix, log), nil
}

func NewRedisStoreWithClient(client *redis.Client, prefix string, log zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, log: log.With().Str("store", "redis").Logger()}
}

// WithPendingTTL makes pending handshakes expire on their own after d.
func (s *RedisStore) WithPendingTTL(d time.Duration) *RedisStore {
	s.pendingTTL = d
	return s
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) sessionKey() string { return s.prefix + "session" }
func (s *RedisStore) pendingKey() string { return s.prefix + "pending" }

func (s *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *RedisStore) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) LoadSession(ctx context.Context) (domain.Session, bool, error) {
	b, err := s.get(ctx, s.sessionKey())
	if err != nil {
		return domain.Session{}, false, err
	}
	sess, ok := decodeSession(s.log, s.sessionKey(), b)
	return sess, ok, nil
}

func (s *RedisStore) SaveSession(ctx context.Context, session domain.Session) error {
	if !session.Complete() {
		return domain.ErrIncompleteSession
	}
	return s.set(ctx, s.sessionKey(), session, 0)
}

func (s *RedisStore) ClearSession(ctx context.Context) error {
	return s.del(ctx, s.sessionKey())
}

func (s *RedisStore) LoadHandshake(ctx context.Context) (domain.PendingHandshake, bool, error) {
	b, err := s.get(ctx, s.pendingKey())
	if err != nil {
		return domain.PendingHandshake{}, false, err
	}
	p, ok := decodeHandshake(s.log, s.pendingKey(), b)
	return p, ok, nil
}

func (s *RedisStore) SaveHandshake(ctx context.Context, pending domain.PendingHandshake) error {
	return s.set(ctx, s.pendingKey(), pending, s.pendingTTL)
}

func (s *RedisStore) ClearHandshake(ctx context.Context) error {
	return s.del(ctx, s.pendingKey())
}

var (
	_ domain.SessionStore   = (*RedisStore)(nil)
	_ domain.HandshakeStore = (*RedisStore)(nil)
)
