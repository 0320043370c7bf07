package loan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Patch carries the mutable fields of a LoanRecord. Identity fields
// (LoanID, OwnerKey, CollateralRef) are deliberately not representable here.
type Patch struct {
	Status              *Status
	SettledAt           *time.Time
	SettlementRef       *string
	CapturedAmount      *decimal.Decimal
	AutomationStatus    *string
	CollateralExpiresAt *time.Time
}

// Ledger is the keyed store of loan records plus the owner index.
// Implementations: in-memory (default) and GORM/MySQL.
type Ledger interface {
	// Create inserts a new record; ErrDuplicateID if the loan id exists.
	Create(ctx context.Context, rec *LoanRecord) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, loanID string) (*LoanRecord, error)

	// ListByOwner returns the owner's loans newest-created-first.
	// Unknown owner yields an empty slice, not an error.
	ListByOwner(ctx context.Context, ownerKey string) ([]LoanRecord, error)

	// ListActive returns every loan still in StatusActive.
	ListActive(ctx context.Context) ([]LoanRecord, error)

	// Update merges the patch into the record; ErrNotFound for unknown ids.
	Update(ctx context.Context, loanID string, p Patch) (*LoanRecord, error)

	// CreditSummary derives the owner's aggregate credit view.
	CreditSummary(ctx context.Context, ownerKey string) (*CreditSummary, error)
}

// CreditSummary is derived on demand from an owner's loans, never stored.
type CreditSummary struct {
	OwnerKey              string          `json:"owner_key"`
	TotalCreditLimit      decimal.Decimal `json:"total_credit_limit"`
	TotalBorrowed         decimal.Decimal `json:"total_borrowed"`
	TotalCharged          decimal.Decimal `json:"total_charged"`
	TotalReleased         decimal.Decimal `json:"total_released"`
	AvailableCredit       decimal.Decimal `json:"available_credit"`
	UtilizationPercentage decimal.Decimal `json:"utilization_percentage"`
	ActiveLoans           int             `json:"active_loans"`
}

var hundred = decimal.NewFromInt(100)

// Summarize computes a CreditSummary from loans ordered newest-first.
// The credit limit is whatever line the most recent loan was opened under.
func Summarize(ownerKey string, records []LoanRecord) *CreditSummary {
	s := &CreditSummary{OwnerKey: ownerKey}
	if len(records) > 0 {
		s.TotalCreditLimit = records[0].CreditLimitAtCreation
	}

	var activeCollateral decimal.Decimal
	for _, r := range records {
		switch r.Status {
		case StatusActive:
			s.TotalBorrowed = s.TotalBorrowed.Add(r.Principal)
			activeCollateral = activeCollateral.Add(r.CollateralAmount)
			s.ActiveLoans++
		case StatusCharged:
			s.TotalCharged = s.TotalCharged.Add(r.CapturedAmount)
		case StatusReleased:
			s.TotalReleased = s.TotalReleased.Add(r.Principal)
		}
	}

	s.AvailableCredit = s.TotalCreditLimit.Sub(activeCollateral)
	if s.AvailableCredit.IsNegative() {
		s.AvailableCredit = decimal.Zero
	}
	if s.TotalCreditLimit.IsPositive() {
		s.UtilizationPercentage = activeCollateral.Div(s.TotalCreditLimit).Mul(hundred)
	}
	return s
}
