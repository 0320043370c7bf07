// Package providers holds in-process stand-ins for the payment processor,
// the lending contract, and the price feed. They keep just enough state to
// run the full loan lifecycle end to end without external services.
package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
)

// SimulatedPayments authorizes, captures and voids card holds in memory.
type SimulatedPayments struct {
	mu    sync.Mutex
	holds map[string]decimal.Decimal
}

func NewSimulatedPayments() *SimulatedPayments {
	return &SimulatedPayments{holds: make(map[string]decimal.Decimal)}
}

func (p *SimulatedPayments) PlaceHold(ctx context.Context, ownerKey string, amount decimal.Decimal, paymentMethodRef string) (string, error) {
	if paymentMethodRef == "" {
		return "", collateral.WrapProvider("payments", "missing_payment_method", fmt.Errorf("owner %s has no payment method", ownerKey))
	}
	holdID := "pi_" + uuid.NewString()
	p.mu.Lock()
	p.holds[holdID] = amount
	p.mu.Unlock()
	return holdID, nil
}

func (p *SimulatedPayments) Capture(ctx context.Context, holdID string) (*collateral.CaptureResult, error) {
	p.mu.Lock()
	amount, ok := p.holds[holdID]
	if ok {
		delete(p.holds, holdID)
	}
	p.mu.Unlock()
	if !ok {
		return nil, collateral.WrapProvider("payments", "hold_not_found", fmt.Errorf("hold %s", holdID))
	}
	return &collateral.CaptureResult{
		CapturedAmount: amount,
		SettlementRef:  "ch_" + uuid.NewString(),
	}, nil
}

func (p *SimulatedPayments) Cancel(ctx context.Context, holdID string) (*collateral.CancelResult, error) {
	p.mu.Lock()
	_, ok := p.holds[holdID]
	if ok {
		delete(p.holds, holdID)
	}
	p.mu.Unlock()
	if !ok {
		return nil, collateral.WrapProvider("payments", "hold_not_found", fmt.Errorf("hold %s", holdID))
	}
	return &collateral.CancelResult{SettlementRef: "void_" + uuid.NewString()}, nil
}

// SimulatedContract tracks open borrow positions in memory.
type SimulatedContract struct {
	mu        sync.Mutex
	positions map[string]decimal.Decimal
}

func NewSimulatedContract() *SimulatedContract {
	return &SimulatedContract{positions: make(map[string]decimal.Decimal)}
}

func (c *SimulatedContract) Borrow(ctx context.Context, params collateral.BorrowParams) (*collateral.BorrowResult, error) {
	ref := "pos_" + uuid.NewString()
	c.mu.Lock()
	c.positions[ref] = params.Principal
	c.mu.Unlock()
	return &collateral.BorrowResult{PositionRef: ref, Principal: params.Principal}, nil
}

func (c *SimulatedContract) Repay(ctx context.Context, positionRef string, amount decimal.Decimal) (*collateral.RepayResult, error) {
	c.mu.Lock()
	_, ok := c.positions[positionRef]
	if ok {
		delete(c.positions, positionRef)
	}
	c.mu.Unlock()
	if !ok {
		return nil, collateral.WrapProvider("contract", "position_not_found", fmt.Errorf("position %s", positionRef))
	}
	return &collateral.RepayResult{TxRef: "0x" + uuid.NewString()}, nil
}

func (c *SimulatedContract) PositionState(ctx context.Context, positionRef string) (*collateral.PositionState, error) {
	c.mu.Lock()
	principal, ok := c.positions[positionRef]
	c.mu.Unlock()
	return &collateral.PositionState{IsActive: ok, Principal: principal}, nil
}

// StaticOracle serves a fixed price table.
type StaticOracle struct {
	Prices map[string]decimal.Decimal
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{Prices: map[string]decimal.Decimal{
		"ETH/USD":  decimal.NewFromInt(3500),
		"WBTC/USD": decimal.NewFromInt(65000),
	}}
}

func (o *StaticOracle) CurrentPrice(ctx context.Context, assetPair string) (*collateral.PriceQuote, error) {
	price, ok := o.Prices[assetPair]
	if !ok {
		return nil, collateral.WrapProvider("oracle", "unknown_pair", fmt.Errorf("pair %s", assetPair))
	}
	return &collateral.PriceQuote{
		Pair:      assetPair,
		Price:     price,
		Timestamp: time.Now().UTC(),
		Source:    "static",
	}, nil
}
