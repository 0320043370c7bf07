// Package memory provides the in-memory Ledger used by the demo deployment
// and by tests. Not durable — restarts lose everything.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
)

type Ledger struct {
	mu      sync.RWMutex
	loans   map[string]*loan.LoanRecord
	byOwner map[string][]string // ownerKey → loan ids, insertion order
	nextPK  uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		loans:   make(map[string]*loan.LoanRecord),
		byOwner: make(map[string][]string),
	}
}

func (l *Ledger) Create(_ context.Context, rec *loan.LoanRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.loans[rec.LoanID]; ok {
		return loan.ErrDuplicateID
	}

	l.nextPK++
	rec.ID = l.nextPK

	// Store a copy so callers can't mutate ledger state directly.
	cp := *rec
	l.loans[rec.LoanID] = &cp
	l.byOwner[rec.OwnerKey] = append(l.byOwner[rec.OwnerKey], rec.LoanID)
	return nil
}

func (l *Ledger) Get(_ context.Context, loanID string) (*loan.LoanRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.loans[loanID]
	if !ok {
		return nil, loan.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (l *Ledger) ListByOwner(_ context.Context, ownerKey string) ([]loan.LoanRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ownerLoansLocked(ownerKey), nil
}

// ownerLoansLocked returns copies of the owner's loans newest-created-first.
// Callers hold at least the read lock.
func (l *Ledger) ownerLoansLocked(ownerKey string) []loan.LoanRecord {
	ids := l.byOwner[ownerKey]
	out := make([]loan.LoanRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.loans[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (l *Ledger) ListActive(_ context.Context) ([]loan.LoanRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []loan.LoanRecord
	for _, rec := range l.loans {
		if rec.Status == loan.StatusActive {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (l *Ledger) Update(_ context.Context, loanID string, p loan.Patch) (*loan.LoanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.loans[loanID]
	if !ok {
		return nil, loan.ErrNotFound
	}

	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.SettledAt != nil {
		rec.SettledAt = p.SettledAt
	}
	if p.SettlementRef != nil {
		rec.SettlementRef = *p.SettlementRef
	}
	if p.CapturedAmount != nil {
		rec.CapturedAmount = *p.CapturedAmount
	}
	if p.AutomationStatus != nil {
		rec.AutomationStatus = *p.AutomationStatus
	}
	if p.CollateralExpiresAt != nil {
		rec.CollateralExpiresAt = p.CollateralExpiresAt
	}

	cp := *rec
	return &cp, nil
}

func (l *Ledger) CreditSummary(_ context.Context, ownerKey string) (*loan.CreditSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return loan.Summarize(ownerKey, l.ownerLoansLocked(ownerKey)), nil
}
