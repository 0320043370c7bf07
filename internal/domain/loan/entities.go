package loan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCharged   Status = "charged"   // card hold captured
	StatusReleased  Status = "released"  // card hold cancelled, settled without capture
	StatusRepaid    Status = "repaid"    // on-chain principal + interest returned
	StatusDefaulted Status = "defaulted" // expired with no resolution
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCharged, StatusReleased, StatusRepaid, StatusDefaulted:
		return true
	}
	return false
}

// ValidTransition encodes the lifecycle state machine:
// active → {charged, released, repaid, defaulted}; terminal states are final.
func ValidTransition(from, to Status) bool {
	return from == StatusActive && to.Terminal()
}

// SettlementKind discriminates how a loan settles: a card pre-authorization
// that gets captured/cancelled, or an on-chain position that gets repaid.
type SettlementKind string

const (
	KindCard     SettlementKind = "card"
	KindContract SettlementKind = "contract"
)

var (
	ErrNotFound           = errors.New("loan not found")
	ErrDuplicateID        = errors.New("loan id already exists")
	ErrInvalidTransition  = errors.New("invalid loan state transition")
	ErrInsufficientCredit = errors.New("insufficient available credit")
	ErrImmutableField     = errors.New("field is immutable after creation")
	ErrInconsistentEvent  = errors.New("event conflicts with loan state")
	ErrValidation         = errors.New("invalid input")
)

// LoanRecord is one borrowing position: crypto borrowed against a card
// pre-authorization (KindCard) or an on-chain collateral position
// (KindContract). LoanID, OwnerKey and CollateralRef are immutable after
// creation; status/settlement fields change only through the lifecycle
// manager or the automation watcher.
type LoanRecord struct {
	ID       uint64         `gorm:"primaryKey;column:id" json:"-"`
	LoanID   string         `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	OwnerKey string         `gorm:"size:64;index:idx_loans_owner" json:"owner_key"`
	Kind     SettlementKind `gorm:"size:16" json:"kind"`

	// CollateralRef identifies the external hold: a payment pre-authorization
	// id for card loans, an on-chain position ref for contract loans.
	CollateralRef string `gorm:"size:64" json:"collateral_ref"`

	Principal        decimal.Decimal `gorm:"type:decimal(32,12)" json:"principal"`
	PrincipalAsset   string          `gorm:"size:16" json:"principal_asset"`
	CollateralAmount decimal.Decimal `gorm:"type:decimal(32,12)" json:"collateral_amount"`
	InterestRate     decimal.Decimal `gorm:"type:decimal(10,4)" json:"interest_rate_annual_percent"`
	LTVRatio         decimal.Decimal `gorm:"type:decimal(10,4)" json:"ltv_ratio_percent"`

	// Contract-kind extension fields; zero for card loans.
	AssetAmount decimal.Decimal `gorm:"type:decimal(32,12)" json:"asset_amount,omitempty"`
	EntryPrice  decimal.Decimal `gorm:"type:decimal(32,12)" json:"entry_price,omitempty"`

	// Optional card hold linked to a contract loan; released best-effort
	// after a confirmed on-chain repayment.
	LinkedHoldRef string `gorm:"size:64" json:"linked_hold_ref,omitempty"`

	// Owner's total credit line at open time, kept for aggregate reporting.
	CreditLimitAtCreation decimal.Decimal `gorm:"type:decimal(32,12)" json:"original_credit_limit_at_creation"`

	CollateralCreatedAt *time.Time `json:"collateral_created_at,omitempty"`
	CollateralExpiresAt *time.Time `json:"collateral_expires_at,omitempty"`

	Status         Status          `gorm:"size:16;index:idx_loans_status" json:"status"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	SettlementRef  string          `gorm:"size:64" json:"settlement_ref,omitempty"`
	CapturedAmount decimal.Decimal `gorm:"type:decimal(32,12)" json:"captured_amount,omitempty"`

	// Side-channel automation marker written by the watcher
	// ("scheduled", "auto_charge", "liquidated", ...). Informational only.
	AutomationStatus string `gorm:"size:32" json:"automation_status,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

func (LoanRecord) TableName() string { return "loans" }
