package snapshot

import (
	"context"
	stderrors "errors"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore stores snapshots as redis strings, with a set of keys as index.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiration of stored snapshots.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a RedisStore from an existing client.
func NewRedisStore(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "derive:snapshot:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Save stores the snapshot and adds its key to the index.
func (s *RedisStore) Save(ctx context.Context, key string, snap *Snapshot) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(key), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return ioError("save", key, err)
	}
	return nil
}

// Load returns the stored snapshot.
func (s *RedisStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if stderrors.Is(err, backend.Nil) {
			return nil, notFound(key)
		}
		return nil, ioError("load", key, err)
	}
	return decode(key, data)
}

// Delete removes the snapshot and its index entry.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.SRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return ioError("delete", key, err)
	}
	return nil
}

// List returns the indexed keys whose snapshot has not expired. Expired
// keys are dropped from the index.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, ioError("list", s.indexKey(), err)
	}

	var keys []string
	for _, key := range members {
		n, err := s.client.Exists(ctx, s.key(key)).Result()
		if err != nil {
			return nil, ioError("list", key, err)
		}
		if n == 0 {
			s.client.SRem(ctx, s.indexKey(), key)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
