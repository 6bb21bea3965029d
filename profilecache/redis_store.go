package profilecache

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/backoffice-session/profiles"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var _ Store = (*RedisStore)(nil)

// DefaultRedisKey is the slot key used when none is configured.
const DefaultRedisKey = "backoffice:profile"

// RedisStore keeps the slot under a single Redis key, for deployments where
// several processes share one operator workstation profile.
type RedisStore struct {
	client  *redis.Client
	key     string
	ttl     time.Duration
	timeout time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKey sets the Redis key holding the slot
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		s.key = key
	}
}

// WithTTL expires the slot after ttl; zero keeps it forever
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithOpTimeout bounds each Redis call
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.timeout = d
	}
}

func NewRedisStore(client *redis.Client, options ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("[NewRedisStore] client is required")
	}
	s := &RedisStore{
		client:  client,
		key:     DefaultRedisKey,
		timeout: 2 * time.Second,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStore) Load() (*profiles.Profile, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p, err := profiles.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("Discarding corrupt profile cache")
		_ = s.client.Del(ctx, s.key).Err()
		return nil, nil
	}
	return p, nil
}

func (s *RedisStore) Save(p *profiles.Profile) error {
	data, err := marshalProfile(p)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

func (s *RedisStore) Clear() error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Del(ctx, s.key).Err()
}
