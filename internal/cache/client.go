// Package cache wraps the shared Redis instance used for the gateway presence
// set and per-user browse-category memoization. Transport failures degrade to
// empty results and no-ops: the cache is an accelerator, never a source of
// truth.
package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// PresenceKey is the fixed list key holding currently-connected usernames.
const PresenceKey = "loggedInUsers"

// Client is a per-process Redis client. go-redis reconnects per command, so
// there is no explicit connect step beyond an initial ping.
type Client struct {
	rdb *redis.Client
}

// New creates a Client for the given host and verifies connectivity with a
// ping. A failed ping is logged, not fatal: subsequent operations retry
// through the driver's own pooling.
func New(ctx context.Context, addr string) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("cache: ping %s failed: %v (operating degraded)", addr, err)
	}
	return &Client{rdb: rdb}
}

// NewFromClient wraps an existing go-redis client. Used by tests.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// AddToList appends value to the list at key only if it is not already
// present. The position lookup and the push are two commands, so concurrent
// writers can race; that is acceptable for a presence indicator.
func (c *Client) AddToList(ctx context.Context, key, value string) error {
	_, err := c.rdb.LPos(ctx, key, value, redis.LPosArgs{}).Result()
	if err == nil {
		return nil // already present
	}
	if err != redis.Nil {
		return fmt.Errorf("cache: lpos %s: %w", key, err)
	}

	if err := c.rdb.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("cache: lpush %s: %w", key, err)
	}
	return nil
}

// RemoveFromList removes the first occurrence of value from the list at key.
func (c *Client) RemoveFromList(ctx context.Context, key, value string) error {
	if err := c.rdb.LRem(ctx, key, 1, value).Err(); err != nil {
		return fmt.Errorf("cache: lrem %s: %w", key, err)
	}
	return nil
}

// ReadList returns the full list at key. Errors degrade to an empty list.
func (c *Client) ReadList(ctx context.Context, key string) []string {
	values, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		log.Printf("cache: lrange %s failed: %v", key, err)
		return nil
	}
	return values
}

// SetScalar stores a plain key/value pair with no expiry.
func (c *Client) SetScalar(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// GetScalar reads a plain key. A missing key or a transport error both return
// the empty string.
func (c *Client) GetScalar(ctx context.Context, key string) string {
	value, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: get %s failed: %v", key, err)
		}
		return ""
	}
	return value
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
