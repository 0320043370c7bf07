package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/rates"
)

type QuoteInput struct {
	Asset            string          `json:"asset"`
	Principal        decimal.Decimal `json:"principal"`
	TargetLTVPercent decimal.Decimal `json:"target_ltv_percent"` // 0 → configured default
}

type QuoteDTO struct {
	QuoteID            string          `json:"quote_id"`
	Asset              string          `json:"asset"`
	Principal          decimal.Decimal `json:"principal"`
	AssetPrice         decimal.Decimal `json:"asset_price"`
	PriceSource        string          `json:"price_source"`
	PrincipalValue     decimal.Decimal `json:"principal_value"`
	InterestRate       decimal.Decimal `json:"interest_rate_annual_percent"`
	TargetLTVPercent   decimal.Decimal `json:"target_ltv_percent"`
	RequiredCollateral decimal.Decimal `json:"required_collateral"`
	LiquidationPrice   decimal.Decimal `json:"liquidation_price"`
	Risk               rates.RiskBand  `json:"risk"`
}

type OpenInput struct {
	OwnerKey         string              `json:"owner_key"`
	Kind             loan.SettlementKind `json:"kind"`
	Asset            string              `json:"asset"`
	Principal        decimal.Decimal     `json:"principal"`
	TargetLTVPercent decimal.Decimal     `json:"target_ltv_percent"` // 0 → configured default
	CreditLimit      decimal.Decimal     `json:"credit_limit"`
	PaymentMethodRef string              `json:"payment_method_ref"`
	HoldDurationSec  int64               `json:"hold_duration_sec"` // 0 → configured default
}

// LoanDTO is a LoanRecord plus figures recomputed at read time from the
// clock: accrued interest and the expiry countdown.
type LoanDTO struct {
	LoanID                string              `json:"loan_id"`
	OwnerKey              string              `json:"owner_key"`
	Kind                  loan.SettlementKind `json:"kind"`
	CollateralRef         string              `json:"collateral_ref"`
	Principal             decimal.Decimal     `json:"principal"`
	PrincipalAsset        string              `json:"principal_asset"`
	CollateralAmount      decimal.Decimal     `json:"collateral_amount"`
	InterestRate          decimal.Decimal     `json:"interest_rate_annual_percent"`
	LTVRatio              decimal.Decimal     `json:"ltv_ratio_percent"`
	Risk                  rates.RiskBand      `json:"risk"`
	CreditLimitAtCreation decimal.Decimal     `json:"original_credit_limit_at_creation"`
	Status                loan.Status         `json:"status"`
	AccruedInterest       decimal.Decimal     `json:"accrued_interest"`
	TotalDue              decimal.Decimal     `json:"total_due"`
	CollateralCreatedAt   *time.Time          `json:"collateral_created_at,omitempty"`
	CollateralExpiresAt   *time.Time          `json:"collateral_expires_at,omitempty"`
	Expired               bool                `json:"expired"`
	SecondsRemaining      int64               `json:"seconds_remaining"`
	SettledAt             *time.Time          `json:"settled_at,omitempty"`
	SettlementRef         string              `json:"settlement_ref,omitempty"`
	CapturedAmount        decimal.Decimal     `json:"captured_amount,omitempty"`
	AutomationStatus      string              `json:"automation_status,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
}

type SettlementDTO struct {
	LoanID         string          `json:"loan_id"`
	Status         loan.Status     `json:"status"`
	SettlementRef  string          `json:"settlement_ref"`
	CapturedAmount decimal.Decimal `json:"captured_amount,omitempty"`
	AmountRepaid   decimal.Decimal `json:"amount_repaid,omitempty"`
	SettledAt      time.Time       `json:"settled_at"`
	Reason         string          `json:"reason,omitempty"`
}

// ExpiryStatus is the pure expiry check result. A loan with no expiry never
// expires; SecondsRemaining is clamped at zero once past due.
type ExpiryStatus struct {
	Expired          bool  `json:"expired"`
	SecondsRemaining int64 `json:"seconds_remaining"`
}

// Automation event types delivered by the inbound webhook.
const (
	EventAutomationScheduled = "AutomationScheduled"
	EventAutoChargeExecuted  = "AutoChargeExecuted"
	EventLoanReleased        = "LoanReleased"
	EventLoanLiquidated      = "LoanLiquidated"
)

// AutomationEvent is the event-sourced side door into the state machine.
// Unknown types and unknown loan ids are rejected, never dropped.
type AutomationEvent struct {
	Type   string    `json:"event_type"`
	LoanID string    `json:"loan_id"`
	Data   EventData `json:"data"`
}

type EventData struct {
	Amount        decimal.Decimal `json:"amount,omitempty"`
	SettlementRef string          `json:"settlement_ref,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}
