package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Locker backed by SET NX PX. The key expires with the lease.
type Redis struct {
	client *redis.Client
	prefix string
	holder string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, prefix, holder string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return NewRedisWithClient(client, prefix, holder), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix, holder string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		holder: holder,
	}
}

func (r *Redis) TryAcquire(ctx context.Context, name string, lease time.Duration) (bool, error) {
	value := fmt.Sprintf("%s@%d", r.holder, time.Now().UnixMilli())
	ok, err := r.client.SetNX(ctx, r.prefix+name, value, lease).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Holder returns the current holder tag of name, or "" when the lease is free.
func (r *Redis) Holder(ctx context.Context, name string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+name).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock %s: %w", name, err)
	}
	return v, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
