package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
)

func TestOpenRedis_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	c, err := OpenRedis(s.Addr(), 2)
	if err != nil {
		t.Fatalf("OpenRedis returned error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if got := c.Options().DB; got != 2 {
		t.Fatalf("client DB = %d, want 2", got)
	}
}

func TestOpenRedis_Failure(t *testing.T) {
	if _, err := OpenRedis("not-a-real-host:6379", 0); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPriceCache_RoundTripAndExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := OpenRedis(s.Addr(), 0)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	pc := NewPriceCache(c, 5*time.Second)
	ctx := context.Background()

	if _, ok := pc.Get(ctx, "ETH/USD"); ok {
		t.Fatal("empty cache reported a hit")
	}

	quote := &collateral.PriceQuote{
		Pair:      "ETH/USD",
		Price:     decimal.RequireFromString("3500.25"),
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Source:    "feed",
	}
	if err := pc.Put(ctx, quote); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok := pc.Get(ctx, "ETH/USD")
	if !ok {
		t.Fatal("expected a hit")
	}
	if !got.Price.Equal(quote.Price) || got.Source != "feed" {
		t.Fatalf("got %+v", got)
	}

	// Past the TTL the entry is gone.
	s.FastForward(6 * time.Second)
	if _, ok := pc.Get(ctx, "ETH/USD"); ok {
		t.Fatal("expired entry still served")
	}
}
