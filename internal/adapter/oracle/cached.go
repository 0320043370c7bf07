// Package oracle decorates a price feed with a short-lived Redis cache so
// quoting and opening bursts reuse one upstream read per pair.
package oracle

import (
	"context"
	"log/slog"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/cache"
)

type CachedOracle struct {
	primary collateral.PriceOracle
	cache   *cache.PriceCache
	log     *slog.Logger
}

func NewCachedOracle(primary collateral.PriceOracle, pc *cache.PriceCache, log *slog.Logger) *CachedOracle {
	if log == nil {
		log = slog.Default()
	}
	return &CachedOracle{primary: primary, cache: pc, log: log}
}

func (o *CachedOracle) CurrentPrice(ctx context.Context, assetPair string) (*collateral.PriceQuote, error) {
	if q, ok := o.cache.Get(ctx, assetPair); ok {
		return q, nil
	}

	q, err := o.primary.CurrentPrice(ctx, assetPair)
	if err != nil {
		return nil, err
	}
	if err := o.cache.Put(ctx, q); err != nil {
		// Serving the fresh quote matters more than caching it.
		o.log.Warn("price cache write failed",
			slog.String("pair", assetPair),
			slog.String("error", err.Error()),
		)
	}
	return q, nil
}
