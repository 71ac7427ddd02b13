package affiliation

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "tracker/pkg/domain"
)

// defaultRankTTL keeps cached ranks short-lived: a role change invalidates
// its own entry, but entries written by other instances age out on their
// own within this window.
const defaultRankTTL = 30 * time.Second

// RedisRankCache is a Redis-backed RankCache. All failures degrade to
// cache misses; the resolver never depends on Redis being up.
type RedisRankCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRankCache returns a rank cache over client. A zero ttl uses the
// default.
func NewRedisRankCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisRankCache {
	if ttl == 0 {
		ttl = defaultRankTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRankCache{client: client, ttl: ttl, logger: logger}
}

func rankKey(orgKey id.OrgKey, userKey id.UserKey) string {
	return "tracker:rank:" + orgKey.String() + ":" + userKey.String()
}

func (c *RedisRankCache) Get(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) (id.Permission, bool) {
	raw, err := c.client.Get(ctx, rankKey(orgKey, userKey)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "rank cache read failed", "error", err)
		}
		return id.PermissionNone, false
	}
	// "none" is cached too: knowing a user has no edge saves the same lookup.
	if raw == id.PermissionNone.String() {
		return id.PermissionNone, true
	}
	p, err := id.ParsePermission(raw)
	if err != nil {
		return id.PermissionNone, false
	}
	return p, true
}

func (c *RedisRankCache) Set(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey, permission id.Permission) {
	if err := c.client.Set(ctx, rankKey(orgKey, userKey), permission.String(), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "rank cache write failed", "error", err)
	}
}

func (c *RedisRankCache) Invalidate(ctx context.Context, orgKey id.OrgKey, userKey id.UserKey) {
	if err := c.client.Del(ctx, rankKey(orgKey, userKey)).Err(); err != nil {
		c.logger.WarnContext(ctx, "rank cache invalidation failed", "error", err)
	}
}
