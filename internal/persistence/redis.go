package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
)

var errRedisNotConfigured = errors.New("redis client not configured")

// Redis wraps the go-redis client used for notification fan-out.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis. An unreachable server is logged, not fatal:
// notifications are fire-and-forget.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Redis{Client: client}
}

// Publish sends message on channel. It satisfies notification.Publisher.
func (r *Redis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if r == nil || r.Client == nil {
		cmd := redis.NewIntCmd(ctx, "publish", channel, message)
		cmd.SetErr(errRedisNotConfigured)
		return cmd
	}
	return r.Client.Publish(ctx, channel, message)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errRedisNotConfigured
	}
	return r.Client.Ping(ctx).Err()
}
