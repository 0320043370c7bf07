// Package metrics provides Prometheus instrumentation for the loan engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoansOpened counts loans created, partitioned by settlement kind.
	LoansOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditshaft_loans_opened_total",
		Help: "Total number of loans opened",
	}, []string{"kind"})

	// Settlements counts terminal transitions by outcome and trigger.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditshaft_settlements_total",
		Help: "Total terminal loan transitions",
	}, []string{"outcome", "trigger"}) // outcome: charged|released|repaid|defaulted; trigger: manual|watcher|event

	// CreditRejections counts opens rejected for insufficient credit.
	CreditRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditshaft_credit_rejections_total",
		Help: "Loan opens rejected by the available-credit check",
	})

	// ProviderFailures counts collaborator call failures by provider.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditshaft_provider_failures_total",
		Help: "External collaborator call failures",
	}, []string{"provider"})

	// WatcherTicks counts expiry-watcher sweeps.
	WatcherTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creditshaft_watcher_ticks_total",
		Help: "Expiry watcher sweeps executed",
	})

	// WebhookEvents counts inbound automation events by result.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creditshaft_webhook_events_total",
		Help: "Inbound automation events",
	}, []string{"type", "result"}) // result: applied|rejected|inconsistent
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
