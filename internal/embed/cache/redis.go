package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alnah/go-vidindex/internal/embed"
)

// redisClient is the subset of *redis.Client used by Redis.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Redis shares vectors between hosts through a Redis server.
type Redis struct {
	client redisClient
}

// ConnectRedis connects to the server at addr (host:port) and checks it
// answers.
func ConnectRedis(ctx context.Context, addr string) (*Redis, error) {
	c := &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return c, nil
}

// Get implements embed.Cache.
func (c *Redis) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := embed.DecodeVector(b)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set implements embed.Cache. Entries are written without expiry.
func (c *Redis) Set(ctx context.Context, key string, vec []float32) error {
	return c.client.Set(ctx, key, embed.EncodeVector(vec), 0).Err()
}

// Close closes the connection pool.
func (c *Redis) Close() error {
	return c.client.Close()
}
