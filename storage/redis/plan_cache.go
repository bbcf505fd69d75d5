// Package redisstore provides Redis-backed caches for the bridge.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oradesk/bridgekit/core"
)

// PlanCache stores plan snapshots in Redis. Plans are immutable from the
// bridge's perspective, so a short TTL only bounds staleness against admin
// edits made in the console.
type PlanCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewPlanCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *PlanCache {
	if keyPrefix == "" {
		keyPrefix = "bridge:plan:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PlanCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (c *PlanCache) key(planID string) string { return c.keyNS + planID }

func (c *PlanCache) Put(ctx context.Context, plan core.Plan) error {
	b, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(plan.ID), b, c.ttl).Err()
}

func (c *PlanCache) Get(ctx context.Context, planID string) (core.Plan, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(planID)).Bytes()
	if err == redis.Nil {
		return core.Plan{}, false, nil
	}
	if err != nil {
		return core.Plan{}, false, err
	}
	var p core.Plan
	if err := json.Unmarshal(val, &p); err != nil {
		return core.Plan{}, false, err
	}
	return p, true, nil
}

func (c *PlanCache) Del(ctx context.Context, planID string) error {
	return c.rdb.Del(ctx, c.key(planID)).Err()
}
