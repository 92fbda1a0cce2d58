package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

// DecisionCache keeps resolved decisions in redis for a short TTL so hot
// routes do not hit the database on every request. All operations are
// best-effort; a cache error just means a miss.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &DecisionCache{client: client, ttl: ttl, prefix: "authz:"}
}

func (dc *DecisionCache) key(userID uint, permission string, c *Context) string {
	channel, macro := "", ""
	if c != nil {
		channel, macro = c.Channel, c.Macrosetor
	}
	return fmt.Sprintf("%s%d:%s:%s:%s", dc.prefix, userID, permission, channel, macro)
}

func (dc *DecisionCache) Get(ctx context.Context, userID uint, permission string, c *Context) (bool, bool) {
	v, err := dc.client.Get(ctx, dc.key(userID, permission, c)).Result()
	if err != nil {
		return false, false
	}
	return v == "1", true
}

func (dc *DecisionCache) Set(ctx context.Context, userID uint, permission string, c *Context, allowed bool) {
	v := "0"
	if allowed {
		v = "1"
	}
	dc.client.Set(ctx, dc.key(userID, permission, c), v, dc.ttl)
}

// InvalidateUser drops every cached decision for one user, e.g. after a
// custom rule or user mutation.
func (dc *DecisionCache) InvalidateUser(ctx context.Context, userID uint) {
	dc.deleteByPattern(ctx, fmt.Sprintf("%s%d:*", dc.prefix, userID))
}

// Flush drops all cached decisions, e.g. after a role or permission
// mutation that can affect many users.
func (dc *DecisionCache) Flush(ctx context.Context) {
	dc.deleteByPattern(ctx, dc.prefix+"*")
}

func (dc *DecisionCache) deleteByPattern(ctx context.Context, pattern string) {
	iter := dc.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		dc.client.Del(ctx, iter.Val())
	}
}
