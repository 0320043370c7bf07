// Package watcher sweeps active loans against their pre-authorization
// expiry: loans inside the lead-time window get auto-charged, loans already
// past expiry with no resolution get marked defaulted. It is also the entry
// point for inbound automation events, which run through the lifecycle
// manager's transition rules.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/domain/loan"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/infrastructure/metrics"
	"github.com/0xgeorgemathew/creditshaft-demo-sub000/internal/usecase/lifecycle"
)

type Config struct {
	// LeadTime before expiry at which auto-charge fires. Default 1 hour.
	LeadTime time.Duration
	// Interval between sweeps when running the loop. Default 1 minute.
	Interval time.Duration
	// AutomationEnabled gates auto-charging; defaulting always runs.
	AutomationEnabled bool
}

func (c Config) withDefaults() Config {
	if c.LeadTime <= 0 {
		c.LeadTime = time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	return c
}

type Watcher struct {
	ledger loan.Ledger
	lc     *lifecycle.Usecase
	cfg    Config
	log    *slog.Logger
}

func New(ledger loan.Ledger, lc *lifecycle.Usecase, cfg Config, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{ledger: ledger, lc: lc, cfg: cfg.withDefaults(), log: log}
}

// TickResult reports what one sweep did.
type TickResult struct {
	Scanned   int `json:"scanned"`
	Charged   int `json:"charged"`
	Defaulted int `json:"defaulted"`
	Failed    int `json:"failed"`
}

// Tick evaluates every active loan once against now. Failures on individual
// loans are logged and counted, never abort the sweep.
func (w *Watcher) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	metrics.WatcherTicks.Inc()

	active, err := w.ledger.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	res := &TickResult{Scanned: len(active)}
	for i := range active {
		rec := &active[i]
		if rec.CollateralExpiresAt == nil {
			continue
		}
		st := lifecycle.CheckExpiry(rec, now)

		switch {
		case st.Expired:
			// Past due with no resolution: the hold can no longer be
			// captured, record the default.
			if _, err := w.lc.MarkDefaulted(ctx, rec.LoanID); err != nil {
				// Lost a race with a concurrent settlement; nothing to do.
				if !errors.Is(err, loan.ErrInvalidTransition) {
					res.Failed++
					w.log.Error("defaulting expired loan failed",
						slog.String("loan_id", rec.LoanID),
						slog.String("error", err.Error()),
					)
					continue
				}
			} else {
				res.Defaulted++
			}

		case w.cfg.AutomationEnabled && rec.Kind == loan.KindCard &&
			time.Duration(st.SecondsRemaining)*time.Second <= w.cfg.LeadTime:
			if _, err := w.lc.AutoCharge(ctx, rec.LoanID, "pre-authorization expiring"); err != nil {
				if !errors.Is(err, loan.ErrInvalidTransition) {
					res.Failed++
					w.log.Error("auto-charge failed",
						slog.String("loan_id", rec.LoanID),
						slog.String("error", err.Error()),
					)
					continue
				}
			} else {
				res.Charged++
			}
		}
	}
	return res, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	w.log.Info("expiry watcher started",
		slog.Duration("interval", w.cfg.Interval),
		slog.Duration("lead_time", w.cfg.LeadTime),
		slog.Bool("automation", w.cfg.AutomationEnabled),
	)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry watcher stopped")
			return
		case now := <-t.C:
			if res, err := w.Tick(ctx, now.UTC()); err != nil {
				w.log.Error("watcher tick failed", slog.String("error", err.Error()))
			} else if res.Charged+res.Defaulted+res.Failed > 0 {
				w.log.Info("watcher tick",
					slog.Int("scanned", res.Scanned),
					slog.Int("charged", res.Charged),
					slog.Int("defaulted", res.Defaulted),
					slog.Int("failed", res.Failed),
				)
			}
		}
	}
}

// HandleEvent applies an inbound automation event and records the outcome
// metric. The lifecycle manager enforces transition legality.
func (w *Watcher) HandleEvent(ctx context.Context, evt lifecycle.AutomationEvent) (*lifecycle.LoanDTO, error) {
	dto, err := w.lc.ApplyEvent(ctx, evt)
	switch {
	case err == nil:
		metrics.WebhookEvents.WithLabelValues(evt.Type, "applied").Inc()
	case errors.Is(err, loan.ErrInconsistentEvent):
		metrics.WebhookEvents.WithLabelValues(evt.Type, "inconsistent").Inc()
	default:
		metrics.WebhookEvents.WithLabelValues(evt.Type, "rejected").Inc()
	}
	return dto, err
}
