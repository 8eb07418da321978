// Package redisclient builds the shared Redis client used by the webhook
// dedup guard and the dispatcher's idempotency guard.
package redisclient

import (
	redis "github.com/redis/go-redis/v9"
)

// Config configures a single Redis connection.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// NewClient returns a configured Redis client.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
