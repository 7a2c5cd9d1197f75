package cache

type RedisClient = redisClient

// NewRedisWithClient builds a Redis cache over a fake client.
func NewRedisWithClient(c RedisClient) *Redis { return &Redis{client: c} }
