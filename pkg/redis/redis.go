// Package redis opens the shared Redis client used by the item number
// counter and the rate limiter.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/labtrace_backend/config"
)

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	defaultDialTimeout  = 5 * time.Second
	defaultIOTimeout    = 3 * time.Second
)

// Options maps the central config onto go-redis options, filling unset
// pool and timeout settings with defaults.
func Options(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     orDefault(cfg.PoolSize, defaultPoolSize),
		MinIdleConns: orDefault(cfg.MinIdleConns, defaultMinIdleConns),
		DialTimeout:  seconds(cfg.DialTimeoutSeconds, defaultDialTimeout),
		ReadTimeout:  seconds(cfg.ReadTimeoutSeconds, defaultIOTimeout),
		WriteTimeout: seconds(cfg.WriteTimeoutSeconds, defaultIOTimeout),
	}
}

// New connects and pings. The caller owns Close.
func New(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is empty")
	}

	rdb := goredis.NewClient(Options(cfg))
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
