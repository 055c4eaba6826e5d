package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

// RateLimitCounter is a sliding-window httprate.LimitCounter shared across
// instances through redis.
type RateLimitCounter struct {
	client       redis.UniversalClient
	prefix       string
	windowLength time.Duration
	timeout      time.Duration
}

var _ httprate.LimitCounter = (*RateLimitCounter)(nil)

// NewRateLimitCounter builds a counter storing keys under prefix.
func NewRateLimitCounter(client redis.UniversalClient, prefix string) *RateLimitCounter {
	if prefix == "" {
		prefix = "pos:ratelimit"
	}
	return &RateLimitCounter{client: client, prefix: prefix, timeout: 500 * time.Millisecond}
}

// Config implements httprate.LimitCounter.
func (c *RateLimitCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

// Increment implements httprate.LimitCounter.
func (c *RateLimitCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy implements httprate.LimitCounter.
func (c *RateLimitCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	k := c.windowKey(key, currentWindow)
	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, k, int64(amount))
	pipe.Expire(ctx, k, 3*c.windowLength)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("platform/cache: rate limit increment: %w", err)
	}
	return nil
}

// Get implements httprate.LimitCounter.
func (c *RateLimitCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	values, err := c.client.MGet(ctx, c.windowKey(key, currentWindow), c.windowKey(key, previousWindow)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("platform/cache: rate limit get: %w", err)
	}
	return toInt(values[0]), toInt(values[1]), nil
}

func (c *RateLimitCounter) windowKey(key string, window time.Time) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, key, window.Unix())
}

func toInt(v any) int {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int
	_, _ = fmt.Sscanf(s, "%d", &n)
	return n
}
