package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the shared ledger.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisBackend stores completed keys in a Redis sorted set scored by
// completion time, so several hosts can share one ledger and reads keep
// insertion order.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return &RedisBackend{client: client, key: opts.Key}, nil
}

// ReadAll returns every member ordered by completion time.
func (b *RedisBackend) ReadAll(ctx context.Context) ([]string, error) {
	keys, err := b.client.ZRange(ctx, b.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read redis ledger: %w", err)
	}
	return keys, nil
}

// Append adds key without changing the score of an existing member.
func (b *RedisBackend) Append(ctx context.Context, key string) error {
	member := redis.Z{Score: float64(time.Now().UnixMicro()), Member: key}
	if err := b.client.ZAddNX(ctx, b.key, member).Err(); err != nil {
		return fmt.Errorf("append redis ledger: %w", err)
	}
	return nil
}

// Replace swaps the set contents in one MULTI/EXEC transaction.
func (b *RedisBackend) Replace(ctx context.Context, keys []string) error {
	base := time.Now().UnixMicro()
	members := make([]redis.Z, 0, len(keys))
	for i, key := range keys {
		members = append(members, redis.Z{Score: float64(base + int64(i)), Member: key})
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, b.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace redis ledger: %w", err)
	}
	return nil
}

// Describe names the Redis key.
func (b *RedisBackend) Describe() string {
	opts := b.client.Options()
	return "redis://" + opts.Addr + "/" + strconv.Itoa(opts.DB) + "#" + b.key
}

// Close closes the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
