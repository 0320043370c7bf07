// Package collabmock provides function-backed fakes for the external
// collaborators (payment processor, on-chain contract, price oracle).
// Zero-value mocks succeed with canned data; override the Fn fields to
// inject behavior.
package collabmock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
)

type HoldProvider struct {
	PlaceHoldFn func(ctx context.Context, ownerKey string, amount decimal.Decimal, paymentMethodRef string) (string, error)
	CaptureFn   func(ctx context.Context, holdID string) (*collateral.CaptureResult, error)
	CancelFn    func(ctx context.Context, holdID string) (*collateral.CancelResult, error)

	// Captured amounts by holdID, for assertions.
	Held map[string]decimal.Decimal
}

func (m *HoldProvider) PlaceHold(ctx context.Context, ownerKey string, amount decimal.Decimal, paymentMethodRef string) (string, error) {
	if m.PlaceHoldFn != nil {
		return m.PlaceHoldFn(ctx, ownerKey, amount, paymentMethodRef)
	}
	holdID := "pi_" + uuid.NewString()
	if m.Held == nil {
		m.Held = make(map[string]decimal.Decimal)
	}
	m.Held[holdID] = amount
	return holdID, nil
}

func (m *HoldProvider) Capture(ctx context.Context, holdID string) (*collateral.CaptureResult, error) {
	if m.CaptureFn != nil {
		return m.CaptureFn(ctx, holdID)
	}
	amount := m.Held[holdID]
	return &collateral.CaptureResult{
		CapturedAmount: amount,
		SettlementRef:  "ch_" + uuid.NewString(),
	}, nil
}

func (m *HoldProvider) Cancel(ctx context.Context, holdID string) (*collateral.CancelResult, error) {
	if m.CancelFn != nil {
		return m.CancelFn(ctx, holdID)
	}
	return &collateral.CancelResult{SettlementRef: "void_" + uuid.NewString()}, nil
}

type ContractProvider struct {
	BorrowFn        func(ctx context.Context, params collateral.BorrowParams) (*collateral.BorrowResult, error)
	RepayFn         func(ctx context.Context, positionRef string, amount decimal.Decimal) (*collateral.RepayResult, error)
	PositionStateFn func(ctx context.Context, positionRef string) (*collateral.PositionState, error)
}

func (m *ContractProvider) Borrow(ctx context.Context, params collateral.BorrowParams) (*collateral.BorrowResult, error) {
	if m.BorrowFn != nil {
		return m.BorrowFn(ctx, params)
	}
	return &collateral.BorrowResult{
		PositionRef: "pos_" + uuid.NewString(),
		Principal:   params.Principal,
	}, nil
}

func (m *ContractProvider) Repay(ctx context.Context, positionRef string, amount decimal.Decimal) (*collateral.RepayResult, error) {
	if m.RepayFn != nil {
		return m.RepayFn(ctx, positionRef, amount)
	}
	return &collateral.RepayResult{TxRef: "0x" + uuid.NewString()}, nil
}

func (m *ContractProvider) PositionState(ctx context.Context, positionRef string) (*collateral.PositionState, error) {
	if m.PositionStateFn != nil {
		return m.PositionStateFn(ctx, positionRef)
	}
	return &collateral.PositionState{IsActive: true}, nil
}

type PriceOracle struct {
	CurrentPriceFn func(ctx context.Context, assetPair string) (*collateral.PriceQuote, error)

	// Price returned by the zero-value oracle for every pair.
	Price decimal.Decimal
}

func (m *PriceOracle) CurrentPrice(ctx context.Context, assetPair string) (*collateral.PriceQuote, error) {
	if m.CurrentPriceFn != nil {
		return m.CurrentPriceFn(ctx, assetPair)
	}
	price := m.Price
	if price.IsZero() {
		price = decimal.NewFromInt(3500)
	}
	return &collateral.PriceQuote{
		Pair:      assetPair,
		Price:     price,
		Timestamp: time.Now().UTC(),
		Source:    "mock",
	}, nil
}
