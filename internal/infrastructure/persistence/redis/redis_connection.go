// Package redis provides the redis client used by the shared rate
// limiter backend.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// Connection wraps the redis client lifecycle.
type Connection struct {
	client *redis.Client
	log    logger.Logger
}

// NewConnection creates a redis client from cfg and verifies
// connectivity with an initial ping.
func NewConnection(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*Connection, error) {
	log = log.WithComponent("redis")

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error(ctx, "Redis ping failed", err,
			logger.String("addr", cfg.Addr))
		return nil, errors.ErrUnavailable("redis is unreachable").WithCause(err)
	}

	log.Info(ctx, "Redis connection established",
		logger.String("addr", cfg.Addr),
		logger.Int("db", cfg.DB))

	return &Connection{client: client, log: log}, nil
}

// Client returns the underlying redis client.
func (c *Connection) Client() redis.UniversalClient {
	return c.client
}

// Ping verifies the connection is still healthy.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func (c *Connection) Close() error {
	c.log.Info(context.Background(), "Closing redis connection")
	return c.client.Close()
}
