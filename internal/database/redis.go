package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions is the subset of redis.Options the service configures.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis creates a client and pings it once. The client is closed
// when the ping fails.
func ConnectRedis(ctx context.Context, o RedisOptions, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return client, nil
}
