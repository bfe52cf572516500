package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vanish-leaderboard/internal/config"
)

// maxUpdateRetries bounds the optimistic-locking retry loop in Update.
const maxUpdateRetries = 5

// RedisStore is the primary blob store. Each leaderboard blob lives in one
// string key under the gamedata: prefix, mirroring the original storage
// container layout.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore creates a new Redis-backed blob store
func NewRedisStore(cfg *config.RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// blobKey returns the Redis key for a leaderboard blob
func (s *RedisStore) blobKey(key string) string {
	return "gamedata:" + key
}

// Get returns the raw contents of a blob
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.blobKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting blob %s: %w", key, err)
	}
	return data, nil
}

// Put overwrites a blob with the given contents
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.blobKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("putting blob %s: %w", key, err)
	}
	return nil
}

// Update runs fn under optimistic locking: the key is watched, fn computes
// the replacement from the current contents, and the write only commits if
// no other writer touched the key in between. A lost race is retried with
// a fresh read up to maxUpdateRetries times.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	k := s.blobKey(key)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, k).Bytes()
			if err == redis.Nil {
				current = nil
			} else if err != nil {
				return fmt.Errorf("reading blob %s: %w", key, err)
			}

			next, err := fn(current)
			if err != nil {
				return err
			}
			if next == nil {
				// No change requested; nothing to commit.
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, k, next, 0)
				return nil
			})
			return err
		}, k)

		if err == redis.TxFailedErr {
			s.logger.Debug("lost optimistic lock, retrying", "key", key, "attempt", attempt+1)
			continue
		}
		return err
	}

	return fmt.Errorf("updating blob %s: %w", key, ErrConcurrentUpdate)
}
