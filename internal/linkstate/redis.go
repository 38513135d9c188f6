package linkstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds connection settings for the link state store.
type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string        `env:"LINK_STATE_PREFIX" envDefault:"link_state:"`
	TTL       time.Duration `env:"LINK_STATE_TTL" envDefault:"10m"`
}

// RedisStore keeps each link state under its own key with a Redis TTL, so
// expiry is enforced by the server. Consume uses GETDEL, which reads and
// removes the key in one atomic command.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// Connect dials Redis, verifies the connection and returns a store.
func Connect(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisStore wraps an existing client. A zero ttl means DefaultTTL.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl, now: time.Now}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

// Create stores ls with the time left until CreatedAt+TTL. Ids are never
// overwritten.
func (s *RedisStore) Create(ctx context.Context, ls LinkState) (LinkState, error) {
	if ls.ID == "" {
		return LinkState{}, errors.New("linkstate: id is required")
	}
	ttl := s.ttl
	if !ls.CreatedAt.IsZero() {
		ttl = s.ttl - s.now().Sub(ls.CreatedAt)
		if ttl <= 0 {
			return LinkState{}, fmt.Errorf("linkstate: %s created at %s is already expired", ls.ID, ls.CreatedAt.Format(time.RFC3339))
		}
	}
	data, err := json.Marshal(ls)
	if err != nil {
		return LinkState{}, fmt.Errorf("failed to marshal link state: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(ls.ID), data, ttl).Result()
	if err != nil {
		return LinkState{}, err
	}
	if !ok {
		return LinkState{}, fmt.Errorf("linkstate: id %s already exists", ls.ID)
	}
	return ls, nil
}

func (s *RedisStore) Consume(ctx context.Context, id string) (LinkState, error) {
	if id == "" {
		return LinkState{}, ErrExpiredOrNotFound
	}
	data, err := s.client.GetDel(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return LinkState{}, ErrExpiredOrNotFound
		}
		return LinkState{}, err
	}
	var ls LinkState
	if err := json.Unmarshal(data, &ls); err != nil {
		return LinkState{}, fmt.Errorf("failed to unmarshal link state: %w", err)
	}
	return ls, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Health checks Redis connectivity.
func (s *RedisStore) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
