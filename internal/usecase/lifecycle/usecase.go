// Package lifecycle orchestrates loan state transitions: open, charge,
// release, repay, and the automation-event side door used by the expiry
// watcher and the inbound webhook.
//
// Every state-changing operation on a loan id is serialized by a per-id
// lock, so at most one terminal transition can ever commit per loan. The
// ledger is mutated only after the external collaborator call has resolved —
// a timeout or failure leaves the loan active.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/collateral"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/metrics"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/rates"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/pkg/id"
)

type Config struct {
	TargetLTVPercent            decimal.Decimal
	LiquidationThresholdPercent decimal.Decimal
	CollaboratorTimeout         time.Duration
	HoldDuration                time.Duration // card pre-authorization validity
}

func (c Config) withDefaults() Config {
	if !c.TargetLTVPercent.IsPositive() {
		c.TargetLTVPercent = decimal.NewFromInt(80)
	}
	if !c.LiquidationThresholdPercent.IsPositive() {
		c.LiquidationThresholdPercent = decimal.NewFromInt(85)
	}
	if c.CollaboratorTimeout <= 0 {
		c.CollaboratorTimeout = 10 * time.Second
	}
	if c.HoldDuration <= 0 {
		c.HoldDuration = 7 * 24 * time.Hour
	}
	return c
}

type Usecase struct {
	ledger   loan.Ledger
	holds    collateral.HoldProvider
	contract collateral.ContractProvider
	oracle   collateral.PriceOracle
	cfg      Config
	log      *slog.Logger

	lmu   sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time // swapped in tests
}

func NewUsecase(ledger loan.Ledger, holds collateral.HoldProvider, contract collateral.ContractProvider, oracle collateral.PriceOracle, cfg Config, log *slog.Logger) *Usecase {
	if log == nil {
		log = slog.Default()
	}
	return &Usecase{
		ledger:   ledger,
		holds:    holds,
		contract: contract,
		oracle:   oracle,
		cfg:      cfg.withDefaults(),
		log:      log,
		locks:    make(map[string]*sync.Mutex),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// lockFor returns the mutex serializing state changes for one loan id.
func (u *Usecase) lockFor(loanID string) *sync.Mutex {
	u.lmu.Lock()
	defer u.lmu.Unlock()
	m, ok := u.locks[loanID]
	if !ok {
		m = &sync.Mutex{}
		u.locks[loanID] = m
	}
	return m
}

func (u *Usecase) collabCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, u.cfg.CollaboratorTimeout)
}

// Quote prices a prospective loan without touching state.
func (u *Usecase) Quote(ctx context.Context, in QuoteInput) (*QuoteDTO, error) {
	if !in.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", loan.ErrValidation)
	}
	targetLTV := in.TargetLTVPercent
	if targetLTV.IsZero() {
		targetLTV = u.cfg.TargetLTVPercent
	}
	if !targetLTV.IsPositive() {
		return nil, fmt.Errorf("%w: target ltv must be positive", loan.ErrValidation)
	}

	asset := strings.ToUpper(in.Asset)
	price, source, err := u.assetPrice(ctx, asset)
	if err != nil {
		return nil, err
	}

	principalValue := in.Principal.Mul(price)
	required := rates.RequiredCollateral(principalValue, targetLTV)
	ltv := rates.EffectiveLTV(principalValue, required)

	var liq decimal.Decimal
	if !rates.IsStableAsset(asset) {
		// Volatile debt against stable collateral: price rising triggers it.
		liq = rates.LiquidationPriceVolatileDebt(principalValue, required, price, u.cfg.LiquidationThresholdPercent)
	}

	return &QuoteDTO{
		QuoteID:            uuid.NewString(),
		Asset:              asset,
		Principal:          in.Principal,
		AssetPrice:         price,
		PriceSource:        source,
		PrincipalValue:     principalValue,
		InterestRate:       rates.InterestRateFor(asset),
		TargetLTVPercent:   targetLTV,
		RequiredCollateral: required,
		LiquidationPrice:   liq,
		Risk:               rates.Classify(ltv),
	}, nil
}

// Open validates the request, checks available credit, places or confirms
// the collateral hold, and persists a new ACTIVE record.
func (u *Usecase) Open(ctx context.Context, in OpenInput) (*LoanDTO, error) {
	if in.OwnerKey == "" {
		return nil, fmt.Errorf("%w: missing owner key", loan.ErrValidation)
	}
	if !in.Principal.IsPositive() {
		return nil, fmt.Errorf("%w: principal must be positive", loan.ErrValidation)
	}
	kind := in.Kind
	if kind == "" {
		kind = loan.KindCard
	}
	if kind != loan.KindCard && kind != loan.KindContract {
		return nil, fmt.Errorf("%w: unknown settlement kind %q", loan.ErrValidation, in.Kind)
	}
	targetLTV := in.TargetLTVPercent
	if targetLTV.IsZero() {
		targetLTV = u.cfg.TargetLTVPercent
	}
	if !targetLTV.IsPositive() {
		return nil, fmt.Errorf("%w: target ltv must be positive", loan.ErrValidation)
	}

	asset := strings.ToUpper(in.Asset)
	price, _, err := u.assetPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	principalValue := in.Principal.Mul(price)
	required := rates.RequiredCollateral(principalValue, targetLTV)

	// Credit check against the owner's current line and held collateral.
	existing, err := u.ledger.ListByOwner(ctx, in.OwnerKey)
	if err != nil {
		return nil, err
	}
	var heldCollateral decimal.Decimal
	for _, r := range existing {
		if r.Status == loan.StatusActive {
			heldCollateral = heldCollateral.Add(r.CollateralAmount)
		}
	}
	available := in.CreditLimit.Sub(heldCollateral)
	if available.IsNegative() {
		available = decimal.Zero
	}
	if required.GreaterThan(available) {
		metrics.CreditRejections.Inc()
		return nil, fmt.Errorf("%w: need %s, available %s", loan.ErrInsufficientCredit, required, available)
	}

	now := u.now()
	rec := &loan.LoanRecord{
		LoanID:                id.NewID32(),
		OwnerKey:              in.OwnerKey,
		Kind:                  kind,
		Principal:             in.Principal,
		PrincipalAsset:        asset,
		CollateralAmount:      required,
		InterestRate:          rates.InterestRateFor(asset),
		LTVRatio:              rates.EffectiveLTV(principalValue, required),
		CreditLimitAtCreation: in.CreditLimit,
		Status:                loan.StatusActive,
		CreatedAt:             now,
	}
	if !rates.IsStableAsset(asset) {
		rec.AssetAmount = in.Principal
		rec.EntryPrice = price
	}

	// Place the hold / open the position before persisting anything.
	cctx, cancel := u.collabCtx(ctx)
	defer cancel()
	switch kind {
	case loan.KindCard:
		holdID, err := u.holds.PlaceHold(cctx, in.OwnerKey, required, in.PaymentMethodRef)
		if err != nil {
			metrics.ProviderFailures.WithLabelValues("payments").Inc()
			return nil, err
		}
		rec.CollateralRef = holdID
		holdDur := u.cfg.HoldDuration
		if in.HoldDurationSec > 0 {
			holdDur = time.Duration(in.HoldDurationSec) * time.Second
		}
		createdAt := now
		expiresAt := now.Add(holdDur)
		rec.CollateralCreatedAt = &createdAt
		rec.CollateralExpiresAt = &expiresAt
	case loan.KindContract:
		res, err := u.contract.Borrow(cctx, collateral.BorrowParams{
			OwnerKey:   in.OwnerKey,
			Asset:      asset,
			Principal:  in.Principal,
			Collateral: required,
		})
		if err != nil {
			metrics.ProviderFailures.WithLabelValues("contract").Inc()
			return nil, err
		}
		rec.CollateralRef = res.PositionRef

		// A payment method on a contract loan backs the position with a
		// card hold too; it is released after repayment.
		if in.PaymentMethodRef != "" {
			holdID, err := u.holds.PlaceHold(cctx, in.OwnerKey, required, in.PaymentMethodRef)
			if err != nil {
				metrics.ProviderFailures.WithLabelValues("payments").Inc()
				return nil, err
			}
			rec.LinkedHoldRef = holdID
			holdDur := u.cfg.HoldDuration
			if in.HoldDurationSec > 0 {
				holdDur = time.Duration(in.HoldDurationSec) * time.Second
			}
			createdAt := now
			expiresAt := now.Add(holdDur)
			rec.CollateralCreatedAt = &createdAt
			rec.CollateralExpiresAt = &expiresAt
		}
	}

	if err := u.ledger.Create(ctx, rec); err != nil {
		return nil, err
	}
	metrics.LoansOpened.WithLabelValues(string(kind)).Inc()
	u.log.Info("loan opened",
		slog.String("loan_id", rec.LoanID),
		slog.String("owner_key", rec.OwnerKey),
		slog.String("kind", string(kind)),
		slog.String("asset", asset),
		slog.String("principal", in.Principal.String()),
		slog.String("collateral", required.String()),
	)
	return u.toDTO(rec), nil
}

// Charge captures the card hold and marks the loan charged. Only legal from
// ACTIVE on a card-settled loan.
func (u *Usecase) Charge(ctx context.Context, loanID, reason string) (*SettlementDTO, error) {
	return u.settle(ctx, loanID, reason, "manual", u.chargeLocked)
}

// Release cancels the card hold and marks the loan released. Only legal from
// ACTIVE on a card-settled loan.
func (u *Usecase) Release(ctx context.Context, loanID, reason string) (*SettlementDTO, error) {
	return u.settle(ctx, loanID, reason, "manual", u.releaseLocked)
}

// Repay settles a contract loan on-chain for principal plus continuously
// compounded interest, then best-effort releases any linked card hold.
func (u *Usecase) Repay(ctx context.Context, loanID string) (*SettlementDTO, error) {
	return u.settle(ctx, loanID, "", "manual", u.repayLocked)
}

// settle serializes the terminal transition for one loan id and delegates
// to the operation-specific step, which runs with the lock held.
func (u *Usecase) settle(ctx context.Context, loanID, reason, trigger string, step func(ctx context.Context, rec *loan.LoanRecord, reason string) (*SettlementDTO, error)) (*SettlementDTO, error) {
	mu := u.lockFor(loanID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := u.ledger.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if rec.Status != loan.StatusActive {
		return nil, fmt.Errorf("%w: loan %s is %s", loan.ErrInvalidTransition, loanID, rec.Status)
	}

	dto, err := step(ctx, rec, reason)
	if err != nil {
		return nil, err
	}
	metrics.Settlements.WithLabelValues(string(dto.Status), trigger).Inc()
	u.log.Info("loan settled",
		slog.String("loan_id", loanID),
		slog.String("status", string(dto.Status)),
		slog.String("trigger", trigger),
		slog.String("settlement_ref", dto.SettlementRef),
	)
	return dto, nil
}

func (u *Usecase) chargeLocked(ctx context.Context, rec *loan.LoanRecord, reason string) (*SettlementDTO, error) {
	if rec.Kind != loan.KindCard {
		return nil, fmt.Errorf("%w: loan %s has no card hold to capture", loan.ErrValidation, rec.LoanID)
	}

	cctx, cancel := u.collabCtx(ctx)
	defer cancel()
	res, err := u.holds.Capture(cctx, rec.CollateralRef)
	if err != nil {
		// Collaborator failed: the loan stays ACTIVE, nothing persisted.
		metrics.ProviderFailures.WithLabelValues("payments").Inc()
		return nil, err
	}

	return u.commitTerminal(ctx, rec.LoanID, loan.StatusCharged, res.SettlementRef, &res.CapturedAmount, nil, reason)
}

func (u *Usecase) releaseLocked(ctx context.Context, rec *loan.LoanRecord, reason string) (*SettlementDTO, error) {
	if rec.Kind != loan.KindCard {
		return nil, fmt.Errorf("%w: loan %s has no card hold to cancel", loan.ErrValidation, rec.LoanID)
	}

	cctx, cancel := u.collabCtx(ctx)
	defer cancel()
	res, err := u.holds.Cancel(cctx, rec.CollateralRef)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("payments").Inc()
		return nil, err
	}

	return u.commitTerminal(ctx, rec.LoanID, loan.StatusReleased, res.SettlementRef, nil, nil, reason)
}

func (u *Usecase) repayLocked(ctx context.Context, rec *loan.LoanRecord, _ string) (*SettlementDTO, error) {
	if rec.Kind != loan.KindContract {
		return nil, fmt.Errorf("%w: loan %s is not settled on-chain", loan.ErrValidation, rec.LoanID)
	}

	due := rec.Principal.Add(rates.AccruedInterestContinuous(rec.Principal, rec.InterestRate, u.now().Sub(rec.CreatedAt)))

	cctx, cancel := u.collabCtx(ctx)
	defer cancel()
	res, err := u.contract.Repay(cctx, rec.CollateralRef, due)
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("contract").Inc()
		return nil, err
	}

	dto, err := u.commitTerminal(ctx, rec.LoanID, loan.StatusRepaid, res.TxRef, nil, &due, "")
	if err != nil {
		return nil, err
	}

	// The debt is settled; releasing a linked card hold is best-effort and
	// must not roll back the confirmed repayment.
	if rec.LinkedHoldRef != "" {
		rctx, rcancel := u.collabCtx(ctx)
		defer rcancel()
		if _, err := u.holds.Cancel(rctx, rec.LinkedHoldRef); err != nil {
			metrics.ProviderFailures.WithLabelValues("payments").Inc()
			u.log.Warn("linked hold release failed after repayment",
				slog.String("loan_id", rec.LoanID),
				slog.String("hold_ref", rec.LinkedHoldRef),
				slog.String("error", err.Error()),
			)
		}
	}
	return dto, nil
}

// commitTerminal persists a terminal transition. Callers hold the loan lock
// and have already confirmed the external settlement.
func (u *Usecase) commitTerminal(ctx context.Context, loanID string, status loan.Status, ref string, captured, repaid *decimal.Decimal, reason string) (*SettlementDTO, error) {
	settledAt := u.now()
	patch := loan.Patch{
		Status:        &status,
		SettledAt:     &settledAt,
		SettlementRef: &ref,
	}
	if captured != nil {
		patch.CapturedAmount = captured
	}
	if _, err := u.ledger.Update(ctx, loanID, patch); err != nil {
		return nil, err
	}

	dto := &SettlementDTO{
		LoanID:        loanID,
		Status:        status,
		SettlementRef: ref,
		SettledAt:     settledAt,
		Reason:        reason,
	}
	if captured != nil {
		dto.CapturedAmount = *captured
	}
	if repaid != nil {
		dto.AmountRepaid = *repaid
	}
	return dto, nil
}

// CheckExpiry is the pure expiry check; it never mutates state.
func CheckExpiry(rec *loan.LoanRecord, now time.Time) ExpiryStatus {
	if rec.CollateralExpiresAt == nil {
		return ExpiryStatus{}
	}
	remaining := rec.CollateralExpiresAt.Sub(now)
	if remaining <= 0 {
		return ExpiryStatus{Expired: true}
	}
	return ExpiryStatus{SecondsRemaining: int64(remaining.Seconds())}
}

// Expiry looks up the loan and runs CheckExpiry against now.
func (u *Usecase) Expiry(ctx context.Context, loanID string, now time.Time) (*ExpiryStatus, error) {
	rec, err := u.ledger.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	st := CheckExpiry(rec, now)
	return &st, nil
}

// ApplyEvent applies an inbound automation event through the same legality
// rules as the manual operations. Illegal transitions are rejected with
// ErrInconsistentEvent and leave the loan untouched.
func (u *Usecase) ApplyEvent(ctx context.Context, evt AutomationEvent) (*LoanDTO, error) {
	mu := u.lockFor(evt.LoanID)
	mu.Lock()
	defer mu.Unlock()

	rec, err := u.ledger.Get(ctx, evt.LoanID)
	if err != nil {
		return nil, err
	}

	switch evt.Type {
	case EventAutomationScheduled:
		if rec.Status.Terminal() {
			return nil, u.inconsistent(evt, rec.Status)
		}
		marker := "scheduled"
		patch := loan.Patch{AutomationStatus: &marker}
		if evt.Data.ExpiresAt != nil {
			patch.CollateralExpiresAt = evt.Data.ExpiresAt
		}
		updated, err := u.ledger.Update(ctx, evt.LoanID, patch)
		if err != nil {
			return nil, err
		}
		return u.toDTO(updated), nil

	case EventAutoChargeExecuted:
		return u.eventTerminal(ctx, evt, rec, loan.StatusCharged, "auto_charge")

	case EventLoanLiquidated:
		return u.eventTerminal(ctx, evt, rec, loan.StatusCharged, "liquidated")

	case EventLoanReleased:
		return u.eventTerminal(ctx, evt, rec, loan.StatusReleased, "released")

	default:
		return nil, fmt.Errorf("%w: unknown event type %q", loan.ErrValidation, evt.Type)
	}
}

// eventTerminal commits an externally settled terminal transition reported
// by an automation event. The settlement already happened out-of-band, so no
// collaborator call is made here — only the legality check and the write.
func (u *Usecase) eventTerminal(ctx context.Context, evt AutomationEvent, rec *loan.LoanRecord, status loan.Status, marker string) (*LoanDTO, error) {
	if !loan.ValidTransition(rec.Status, status) {
		return nil, u.inconsistent(evt, rec.Status)
	}

	settledAt := u.now()
	ref := evt.Data.SettlementRef
	if ref == "" {
		ref = "evt_" + uuid.NewString()
	}
	patch := loan.Patch{
		Status:           &status,
		SettledAt:        &settledAt,
		SettlementRef:    &ref,
		AutomationStatus: &marker,
	}
	if status == loan.StatusCharged && evt.Data.Amount.IsPositive() {
		patch.CapturedAmount = &evt.Data.Amount
	}
	updated, err := u.ledger.Update(ctx, evt.LoanID, patch)
	if err != nil {
		return nil, err
	}
	metrics.Settlements.WithLabelValues(string(status), "event").Inc()
	u.log.Info("automation event applied",
		slog.String("loan_id", evt.LoanID),
		slog.String("event_type", evt.Type),
		slog.String("status", string(status)),
	)
	return u.toDTO(updated), nil
}

func (u *Usecase) inconsistent(evt AutomationEvent, current loan.Status) error {
	u.log.Warn("inconsistent automation event rejected",
		slog.String("loan_id", evt.LoanID),
		slog.String("event_type", evt.Type),
		slog.String("current_status", string(current)),
	)
	return fmt.Errorf("%w: %s on %s loan %s", loan.ErrInconsistentEvent, evt.Type, current, evt.LoanID)
}

// MarkDefaulted records an expired, unresolved loan as defaulted. Used by
// the expiry watcher; goes through the same lock and legality rules.
func (u *Usecase) MarkDefaulted(ctx context.Context, loanID string) (*SettlementDTO, error) {
	return u.settle(ctx, loanID, "pre-authorization expired", "watcher", func(ctx context.Context, rec *loan.LoanRecord, reason string) (*SettlementDTO, error) {
		return u.commitTerminal(ctx, rec.LoanID, loan.StatusDefaulted, "", nil, nil, reason)
	})
}

// AutoCharge is Charge fired by the watcher; identical semantics, separate
// trigger label.
func (u *Usecase) AutoCharge(ctx context.Context, loanID, reason string) (*SettlementDTO, error) {
	return u.settle(ctx, loanID, reason, "watcher", u.chargeLocked)
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	rec, err := u.ledger.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return u.toDTO(rec), nil
}

func (u *Usecase) ListByOwner(ctx context.Context, ownerKey string) ([]LoanDTO, error) {
	records, err := u.ledger.ListByOwner(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(records))
	for i := range records {
		out = append(out, *u.toDTO(&records[i]))
	}
	return out, nil
}

func (u *Usecase) Summary(ctx context.Context, ownerKey string) (*loan.CreditSummary, error) {
	return u.ledger.CreditSummary(ctx, ownerKey)
}

// toDTO projects a record plus the read-time figures: interest accrues up to
// settlement for terminal loans, up to now for active ones.
func (u *Usecase) toDTO(rec *loan.LoanRecord) *LoanDTO {
	now := u.now()
	accrualEnd := now
	if rec.SettledAt != nil {
		accrualEnd = *rec.SettledAt
	}
	accrued := rates.AccruedInterestContinuous(rec.Principal, rec.InterestRate, accrualEnd.Sub(rec.CreatedAt))
	expiry := CheckExpiry(rec, now)

	return &LoanDTO{
		LoanID:                rec.LoanID,
		OwnerKey:              rec.OwnerKey,
		Kind:                  rec.Kind,
		CollateralRef:         rec.CollateralRef,
		Principal:             rec.Principal,
		PrincipalAsset:        rec.PrincipalAsset,
		CollateralAmount:      rec.CollateralAmount,
		InterestRate:          rec.InterestRate,
		LTVRatio:              rec.LTVRatio,
		Risk:                  rates.Classify(rec.LTVRatio),
		CreditLimitAtCreation: rec.CreditLimitAtCreation,
		Status:                rec.Status,
		AccruedInterest:       accrued.RoundBank(8),
		TotalDue:              rec.Principal.Add(accrued).RoundBank(8),
		CollateralCreatedAt:   rec.CollateralCreatedAt,
		CollateralExpiresAt:   rec.CollateralExpiresAt,
		Expired:               expiry.Expired,
		SecondsRemaining:      expiry.SecondsRemaining,
		SettledAt:             rec.SettledAt,
		SettlementRef:         rec.SettlementRef,
		CapturedAmount:        rec.CapturedAmount,
		AutomationStatus:      rec.AutomationStatus,
		CreatedAt:             rec.CreatedAt,
	}
}

// assetPrice resolves the USD price for asset. Stable assets are pegged 1:1
// and never hit the oracle.
func (u *Usecase) assetPrice(ctx context.Context, asset string) (decimal.Decimal, string, error) {
	if rates.IsStableAsset(asset) {
		return decimal.NewFromInt(1), "peg", nil
	}
	cctx, cancel := u.collabCtx(ctx)
	defer cancel()
	q, err := u.oracle.CurrentPrice(cctx, asset+"/USD")
	if err != nil {
		metrics.ProviderFailures.WithLabelValues("oracle").Inc()
		return decimal.Zero, "", err
	}
	return q.Price, q.Source, nil
}
