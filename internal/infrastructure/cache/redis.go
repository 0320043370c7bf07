package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
)

func OpenRedis(addr string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// PriceCache keeps recent oracle quotes in Redis so bursts of quote and
// open requests don't hammer the upstream feed.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPriceCache(rdb *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: rdb, ttl: ttl}
}

func priceKey(pair string) string { return "price:" + pair }

func (c *PriceCache) Get(ctx context.Context, pair string) (*collateral.PriceQuote, bool) {
	raw, err := c.rdb.Get(ctx, priceKey(pair)).Bytes()
	if err != nil {
		return nil, false
	}
	var q collateral.PriceQuote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, false
	}
	return &q, true
}

func (c *PriceCache) Put(ctx context.Context, q *collateral.PriceQuote) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, priceKey(q.Pair), raw, c.ttl).Err()
}
