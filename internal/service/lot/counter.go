package lot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Counter hands out per-job sequence numbers. Next never returns a value
// at or below floor, nor one it has returned before for the same key.
type Counter interface {
	Next(ctx context.Context, key string, floor int) (int, error)
	// Current is the last value handed out, without reserving anything.
	Current(ctx context.Context, key string) (int, error)
}

// NoCounter relies on the store's unique index alone.
type NoCounter struct{}

func (NoCounter) Next(_ context.Context, _ string, floor int) (int, error) { return floor + 1, nil }

func (NoCounter) Current(context.Context, string) (int, error) { return 0, nil }

// LocalCounter serialises allocation inside one process.
type LocalCounter struct {
	mu   sync.Mutex
	last map[string]int
}

func NewLocalCounter() *LocalCounter {
	return &LocalCounter{last: map[string]int{}}
}

func (c *LocalCounter) Next(ctx context.Context, key string, floor int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := max(c.last[key], floor) + 1
	c.last[key] = n
	return n, nil
}

func (c *LocalCounter) Current(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[key], nil
}

// nextScript raises the stored counter to the floor and increments it in
// one atomic step.
var nextScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then cur = floor end
cur = cur + 1
redis.call('SET', KEYS[1], cur)
return cur
`)

// RedisCounter shares sequence numbers across every process using the
// same Redis.
type RedisCounter struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisCounter(rdb redis.Cmdable, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

func (c *RedisCounter) Next(ctx context.Context, key string, floor int) (int, error) {
	n, err := nextScript.Run(ctx, c.rdb, []string{c.prefix + key}, floor).Int()
	if err != nil {
		return 0, fmt.Errorf("lot counter: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Current(ctx context.Context, key string) (int, error) {
	n, err := c.rdb.Get(ctx, c.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lot counter: %w", err)
	}
	return n, nil
}
