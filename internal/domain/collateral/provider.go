// Package collateral defines the contracts of the external settlement
// collaborators: the card-payment processor holding the pre-authorization,
// the on-chain lending contract, and the price oracle. Implementations live
// outside this module; tests use the function-backed mocks in
// internal/testutil/collabmock.
package collateral

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HoldProvider is the card-payment processor boundary.
type HoldProvider interface {
	// PlaceHold reserves amount against the owner's payment method and
	// returns the pre-authorization id.
	PlaceHold(ctx context.Context, ownerKey string, amount decimal.Decimal, paymentMethodRef string) (holdID string, err error)

	// Capture converts the hold into an actual charge.
	Capture(ctx context.Context, holdID string) (*CaptureResult, error)

	// Cancel voids the hold without charging.
	Cancel(ctx context.Context, holdID string) (*CancelResult, error)
}

type CaptureResult struct {
	CapturedAmount decimal.Decimal
	SettlementRef  string
}

type CancelResult struct {
	SettlementRef string
}

// ContractProvider is the on-chain lending contract boundary.
type ContractProvider interface {
	Borrow(ctx context.Context, params BorrowParams) (*BorrowResult, error)
	Repay(ctx context.Context, positionRef string, amount decimal.Decimal) (*RepayResult, error)
	PositionState(ctx context.Context, positionRef string) (*PositionState, error)
}

type BorrowParams struct {
	OwnerKey    string
	Asset       string
	Principal   decimal.Decimal
	Collateral  decimal.Decimal
	DurationSec int64
}

type BorrowResult struct {
	PositionRef string
	Principal   decimal.Decimal
}

type RepayResult struct {
	TxRef string
}

type PositionState struct {
	Principal       decimal.Decimal
	AccruedInterest decimal.Decimal
	IsExpired       bool
	IsActive        bool
}

// PriceOracle returns the current price of an asset pair, e.g. "ETH/USD".
// Callers treat the returned price as authoritative for the single
// calculation it was fetched for.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, assetPair string) (*PriceQuote, error)
}

type PriceQuote struct {
	Pair      string          `json:"pair"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// ProviderError wraps a collaborator failure with enough detail for the
// caller to decide whether to retry. The loan state it was operating on is
// always left untouched.
type ProviderError struct {
	Provider string // "payments", "contract", "oracle"
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapProvider builds a ProviderError around err, preserving it for
// errors.Is/As chains.
func WrapProvider(provider, code string, err error) *ProviderError {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return &ProviderError{Provider: provider, Code: code, Message: msg, Err: err}
}
