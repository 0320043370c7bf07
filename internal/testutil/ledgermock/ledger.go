// Package ledgermock is a function-backed mock that satisfies loan.Ledger.
// Only override the methods your test exercises.
package ledgermock

import (
	"context"
	"errors"

	domain "github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
)

type Ledger struct {
	CreateFn        func(ctx context.Context, rec *domain.LoanRecord) error
	GetFn           func(ctx context.Context, loanID string) (*domain.LoanRecord, error)
	ListByOwnerFn   func(ctx context.Context, ownerKey string) ([]domain.LoanRecord, error)
	ListActiveFn    func(ctx context.Context) ([]domain.LoanRecord, error)
	UpdateFn        func(ctx context.Context, loanID string, p domain.Patch) (*domain.LoanRecord, error)
	CreditSummaryFn func(ctx context.Context, ownerKey string) (*domain.CreditSummary, error)
}

var errNotImplemented = errors.New("ledgermock: not implemented")

func (m *Ledger) Create(ctx context.Context, rec *domain.LoanRecord) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, rec)
	}
	return nil
}

func (m *Ledger) Get(ctx context.Context, loanID string) (*domain.LoanRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, loanID)
	}
	return nil, errNotImplemented
}

func (m *Ledger) ListByOwner(ctx context.Context, ownerKey string) ([]domain.LoanRecord, error) {
	if m.ListByOwnerFn != nil {
		return m.ListByOwnerFn(ctx, ownerKey)
	}
	return nil, nil
}

func (m *Ledger) ListActive(ctx context.Context) ([]domain.LoanRecord, error) {
	if m.ListActiveFn != nil {
		return m.ListActiveFn(ctx)
	}
	return nil, nil
}

func (m *Ledger) Update(ctx context.Context, loanID string, p domain.Patch) (*domain.LoanRecord, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, loanID, p)
	}
	return nil, errNotImplemented
}

func (m *Ledger) CreditSummary(ctx context.Context, ownerKey string) (*domain.CreditSummary, error) {
	if m.CreditSummaryFn != nil {
		return m.CreditSummaryFn(ctx, ownerKey)
	}
	return nil, errNotImplemented
}
