package sessionstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the slot in a single redis string key.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = &RedisStore{}

func NewRedisStore(addr string, key string) (*RedisStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("redis session store: empty addr")
	}
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), key), nil
}

func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context) (string, bool, error) {
	if s == nil || s.client == nil {
		return "", false, errors.New("redis session store: client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis session store: get")
	}
	return value, value != "", nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string) error {
	if s == nil || s.client == nil {
		return errors.New("redis session store: client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.Wrap(s.client.Del(ctx, s.key).Err(), "redis session store: del")
	}
	return errors.Wrap(s.client.Set(ctx, s.key, sessionID, 0).Err(), "redis session store: set")
}
