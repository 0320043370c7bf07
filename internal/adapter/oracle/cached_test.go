package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/cache"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/testutil/collabmock"
)

func newCached(t *testing.T, primary collateral.PriceOracle, ttl time.Duration) (*CachedOracle, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb, err := cache.OpenRedis(s.Addr(), 0)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCachedOracle(primary, cache.NewPriceCache(rdb, ttl), nil), s
}

func TestCurrentPrice_CachesUpstreamReads(t *testing.T) {
	calls := 0
	primary := &collabmock.PriceOracle{
		CurrentPriceFn: func(ctx context.Context, pair string) (*collateral.PriceQuote, error) {
			calls++
			return &collateral.PriceQuote{
				Pair:      pair,
				Price:     decimal.RequireFromString("3500"),
				Timestamp: time.Now().UTC(),
				Source:    "feed",
			}, nil
		},
	}
	o, s := newCached(t, primary, 5*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := o.CurrentPrice(ctx, "ETH/USD")
		if err != nil {
			t.Fatalf("price %d: %v", i, err)
		}
		if !q.Price.Equal(decimal.RequireFromString("3500")) {
			t.Fatalf("price = %s", q.Price)
		}
	}
	if calls != 1 {
		t.Fatalf("upstream called %d times, want 1", calls)
	}

	// After the TTL a fresh read goes upstream again.
	s.FastForward(6 * time.Second)
	if _, err := o.CurrentPrice(ctx, "ETH/USD"); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("upstream called %d times after expiry, want 2", calls)
	}
}

func TestCurrentPrice_UpstreamErrorPropagates(t *testing.T) {
	primary := &collabmock.PriceOracle{
		CurrentPriceFn: func(ctx context.Context, pair string) (*collateral.PriceQuote, error) {
			return nil, collateral.WrapProvider("oracle", "feed_down", errors.New("no quote"))
		},
	}
	o, _ := newCached(t, primary, time.Second)

	if _, err := o.CurrentPrice(context.Background(), "WBTC/USD"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCurrentPrice_PairsCachedIndependently(t *testing.T) {
	primary := &collabmock.PriceOracle{
		CurrentPriceFn: func(ctx context.Context, pair string) (*collateral.PriceQuote, error) {
			p := decimal.RequireFromString("3500")
			if pair == "WBTC/USD" {
				p = decimal.RequireFromString("65000")
			}
			return &collateral.PriceQuote{Pair: pair, Price: p, Timestamp: time.Now().UTC(), Source: "feed"}, nil
		},
	}
	o, _ := newCached(t, primary, 5*time.Second)
	ctx := context.Background()

	eth, err := o.CurrentPrice(ctx, "ETH/USD")
	if err != nil {
		t.Fatalf("eth: %v", err)
	}
	btc, err := o.CurrentPrice(ctx, "WBTC/USD")
	if err != nil {
		t.Fatalf("btc: %v", err)
	}
	if eth.Price.Equal(btc.Price) {
		t.Fatalf("pairs collided: %s", eth.Price)
	}
}
