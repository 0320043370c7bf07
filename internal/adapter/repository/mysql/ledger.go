// Package mysql implements the loan Ledger on GORM. MySQL is the production
// backend; tests run the same code against in-memory SQLite.
package mysql

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
)

type Ledger struct{ db *gorm.DB }

func NewLedger(db *gorm.DB) *Ledger { return &Ledger{db: db} }

func (l *Ledger) Create(ctx context.Context, rec *loan.LoanRecord) error {
	err := l.db.WithContext(ctx).Create(rec).Error
	if err != nil && isDuplicateKey(err) {
		return loan.ErrDuplicateID
	}
	return err
}

func (l *Ledger) Get(ctx context.Context, loanID string) (*loan.LoanRecord, error) {
	var out loan.LoanRecord
	res := l.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loan.ErrNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

func (l *Ledger) ListByOwner(ctx context.Context, ownerKey string) ([]loan.LoanRecord, error) {
	out := []loan.LoanRecord{}
	res := l.db.WithContext(ctx).
		Where("owner_key = ?", ownerKey).
		Order("created_at DESC, id DESC").
		Find(&out)
	return out, res.Error
}

func (l *Ledger) ListActive(ctx context.Context) ([]loan.LoanRecord, error) {
	out := []loan.LoanRecord{}
	res := l.db.WithContext(ctx).Where("status = ?", loan.StatusActive).Find(&out)
	return out, res.Error
}

func (l *Ledger) Update(ctx context.Context, loanID string, p loan.Patch) (*loan.LoanRecord, error) {
	cols := map[string]any{}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.SettledAt != nil {
		cols["settled_at"] = *p.SettledAt
	}
	if p.SettlementRef != nil {
		cols["settlement_ref"] = *p.SettlementRef
	}
	if p.CapturedAmount != nil {
		cols["captured_amount"] = *p.CapturedAmount
	}
	if p.AutomationStatus != nil {
		cols["automation_status"] = *p.AutomationStatus
	}
	if p.CollateralExpiresAt != nil {
		cols["collateral_expires_at"] = *p.CollateralExpiresAt
	}

	// Existence check up front: MySQL reports zero rows affected for
	// no-op updates, so RowsAffected can't distinguish missing from same.
	if _, err := l.Get(ctx, loanID); err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		res := l.db.WithContext(ctx).
			Model(&loan.LoanRecord{}).
			Where("loan_id = ?", loanID).
			Updates(cols)
		if res.Error != nil {
			return nil, res.Error
		}
	}
	return l.Get(ctx, loanID)
}

func (l *Ledger) CreditSummary(ctx context.Context, ownerKey string) (*loan.CreditSummary, error) {
	records, err := l.ListByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	return loan.Summarize(ownerKey, records), nil
}

// isDuplicateKey matches the unique-index violation across MySQL (1062)
// and SQLite (used in tests) without importing driver error types.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(strings.ToUpper(msg), "UNIQUE")
}
