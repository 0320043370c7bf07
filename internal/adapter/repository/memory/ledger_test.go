package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/pkg/id"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func makeLoan(ownerKey string, createdAt time.Time) *loan.LoanRecord {
	return &loan.LoanRecord{
		LoanID:                id.NewID32(),
		OwnerKey:              ownerKey,
		Kind:                  loan.KindCard,
		CollateralRef:         "pi_" + id.NewID32()[:24],
		Principal:             dec("1000"),
		PrincipalAsset:        "USDC",
		CollateralAmount:      dec("1250"),
		InterestRate:          dec("5.2"),
		LTVRatio:              dec("80"),
		CreditLimitAtCreation: dec("2000"),
		Status:                loan.StatusActive,
		CreatedAt:             createdAt,
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	rec := makeLoan("owner-a", time.Now().UTC())
	if err := l.Create(ctx, rec); err != nil {
		t.Fatalf("first create: %v", err)
	}
	dup := *rec
	if err := l.Create(ctx, &dup); !errors.Is(err, loan.ErrDuplicateID) {
		t.Fatalf("duplicate create err = %v, want ErrDuplicateID", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	l := NewLedger()
	if _, err := l.Get(context.Background(), "missing"); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	rec := makeLoan("owner-a", time.Now().UTC())
	if err := l.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := l.Get(ctx, rec.LoanID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = loan.StatusCharged // must not leak into the ledger

	again, _ := l.Get(ctx, rec.LoanID)
	if again.Status != loan.StatusActive {
		t.Fatalf("ledger state mutated through returned copy")
	}
}

func TestListByOwner_NewestFirst_EmptyForUnknown(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	base := time.Now().UTC()

	older := makeLoan("owner-a", base.Add(-time.Hour))
	newer := makeLoan("owner-a", base)
	other := makeLoan("owner-b", base)
	for _, r := range []*loan.LoanRecord{older, newer, other} {
		if err := l.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := l.ListByOwner(ctx, "owner-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].LoanID != newer.LoanID || got[1].LoanID != older.LoanID {
		t.Fatalf("not newest-first: %s, %s", got[0].LoanID, got[1].LoanID)
	}

	empty, err := l.ListByOwner(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown owner: got %d records, err %v; want empty, nil", len(empty), err)
	}
}

func TestUpdate_MergesMutableFields(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	rec := makeLoan("owner-a", time.Now().UTC())
	if err := l.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	status := loan.StatusCharged
	settledAt := time.Now().UTC()
	ref := "ch_123"
	captured := dec("1250")
	got, err := l.Update(ctx, rec.LoanID, loan.Patch{
		Status:         &status,
		SettledAt:      &settledAt,
		SettlementRef:  &ref,
		CapturedAmount: &captured,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != loan.StatusCharged || got.SettlementRef != "ch_123" {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.SettledAt == nil || !got.SettledAt.Equal(settledAt) {
		t.Fatalf("settledAt = %v, want %v", got.SettledAt, settledAt)
	}
	// Untouched fields survive.
	if got.OwnerKey != "owner-a" || !got.Principal.Equal(dec("1000")) {
		t.Fatalf("unpatched fields changed: %+v", got)
	}

	if _, err := l.Update(ctx, "missing", loan.Patch{Status: &status}); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestCreditSummary_Derivation(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	base := time.Now().UTC()

	active := makeLoan("owner-a", base.Add(-2*time.Hour))
	charged := makeLoan("owner-a", base.Add(-time.Hour))
	charged.Status = loan.StatusCharged
	charged.CapturedAmount = dec("1250")
	newest := makeLoan("owner-a", base)
	newest.CreditLimitAtCreation = dec("5000")
	for _, r := range []*loan.LoanRecord{active, charged, newest} {
		if err := l.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	s, err := l.CreditSummary(ctx, "owner-a")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	// Limit comes from the most recently created loan.
	if !s.TotalCreditLimit.Equal(dec("5000")) {
		t.Fatalf("limit = %s, want 5000", s.TotalCreditLimit)
	}
	if s.ActiveLoans != 2 {
		t.Fatalf("active = %d, want 2", s.ActiveLoans)
	}
	if !s.TotalBorrowed.Equal(dec("2000")) {
		t.Fatalf("borrowed = %s, want 2000", s.TotalBorrowed)
	}
	if !s.TotalCharged.Equal(dec("1250")) {
		t.Fatalf("charged = %s, want 1250", s.TotalCharged)
	}
	// available = max(0, 5000 − (1250+1250)) = 2500
	if !s.AvailableCredit.Equal(dec("2500")) {
		t.Fatalf("available = %s, want 2500", s.AvailableCredit)
	}
	// utilization = 2500/5000 × 100 = 50
	if !s.UtilizationPercentage.Equal(dec("50")) {
		t.Fatalf("utilization = %s, want 50", s.UtilizationPercentage)
	}
}

func TestCreditSummary_ClipsAtZero_AndZeroLimit(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	over := makeLoan("owner-a", time.Now().UTC())
	over.CollateralAmount = dec("9000")
	over.CreditLimitAtCreation = dec("2000")
	if err := l.Create(ctx, over); err != nil {
		t.Fatalf("create: %v", err)
	}
	s, _ := l.CreditSummary(ctx, "owner-a")
	if !s.AvailableCredit.IsZero() {
		t.Fatalf("available = %s, want 0 (clipped)", s.AvailableCredit)
	}

	// No loans at all → zero limit, zero utilization (no division by zero).
	empty, _ := l.CreditSummary(ctx, "nobody")
	if !empty.TotalCreditLimit.IsZero() || !empty.UtilizationPercentage.IsZero() {
		t.Fatalf("empty owner summary = %+v", empty)
	}
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	rec := makeLoan("owner-a", time.Now().UTC())
	if err := l.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = l.Get(ctx, rec.LoanID)
			_, _ = l.CreditSummary(ctx, "owner-a")
		}()
		go func() {
			defer wg.Done()
			status := loan.StatusActive
			_, _ = l.Update(ctx, rec.LoanID, loan.Patch{Status: &status})
		}()
	}
	wg.Wait()
}
