package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/observability"
)

// CacheConfig configures CachedStore
type CacheConfig struct {
	// Size bounds the in-process LRU
	Size int
	// TTL applies to both layers
	TTL time.Duration
	// Redis is the optional shared second layer
	Redis *redis.Client
}

// CachedStore fronts a MembershipStore with an in-process expirable LRU and an
// optional Redis layer. Concurrent misses for the same key share one lookup.
// Redis failures are logged and fall through to the backing store.
type CachedStore struct {
	next    MembershipStore
	local   *expirable.LRU[string, []Membership]
	redis   *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCachedStore wraps next with the configured caches
func NewCachedStore(next MembershipStore, cfg CacheConfig, logger *observability.Logger, metrics *observability.Metrics) *CachedStore {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &CachedStore{
		next:    next,
		local:   expirable.NewLRU[string, []Membership](cfg.Size, nil, cfg.TTL),
		redis:   cfg.Redis,
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: metrics,
	}
}

func cacheKey(userID, organizationID string) string {
	return fmt.Sprintf("rbac:memberships:%s:%s", organizationID, userID)
}

// ListMemberships implements MembershipStore
func (c *CachedStore) ListMemberships(ctx context.Context, userID, organizationID string) ([]Membership, error) {
	key := cacheKey(userID, organizationID)

	if cached, ok := c.local.Get(key); ok {
		c.metrics.RecordMembershipLookup("local", "hit")
		return copyMemberships(cached), nil
	}
	c.metrics.RecordMembershipLookup("local", "miss")

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if memberships, ok := c.getRedis(ctx, key); ok {
			c.local.Add(key, memberships)
			return memberships, nil
		}

		memberships, err := c.next.ListMemberships(ctx, userID, organizationID)
		if err != nil {
			return nil, err
		}

		c.local.Add(key, memberships)
		c.setRedis(ctx, key, memberships)
		return memberships, nil
	})
	if err != nil {
		return nil, err
	}

	return copyMemberships(v.([]Membership)), nil
}

// Invalidate drops the cached memberships of a user in an organization from both layers
func (c *CachedStore) Invalidate(ctx context.Context, userID, organizationID string) error {
	key := cacheKey(userID, organizationID)
	c.local.Remove(key)

	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate membership cache: %w", err)
	}
	return nil
}

func (c *CachedStore) getRedis(ctx context.Context, key string) ([]Membership, bool) {
	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.RecordMembershipLookup("redis", "miss")
		return nil, false
	} else if err != nil {
		c.metrics.RecordMembershipLookup("redis", "error")
		c.logger.WithError(err).Warn("redis membership lookup failed")
		return nil, false
	}

	var memberships []Membership
	if err := json.Unmarshal(data, &memberships); err != nil {
		// Corrupt entry; drop it and reload from the store.
		c.redis.Del(ctx, key)
		c.metrics.RecordMembershipLookup("redis", "error")
		return nil, false
	}

	c.metrics.RecordMembershipLookup("redis", "hit")
	return memberships, true
}

func (c *CachedStore) setRedis(ctx context.Context, key string, memberships []Membership) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(memberships)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("redis membership store failed")
	}
}

func copyMemberships(in []Membership) []Membership {
	if in == nil {
		return nil
	}
	return append([]Membership(nil), in...)
}
