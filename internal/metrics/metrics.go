// Package metrics exposes Prometheus counters for the webhook flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	WebhooksReceived prometheus.Counter
	WebhooksIgnored  prometheus.Counter
	Reconciled       prometheus.Counter
	Idempotent       prometheus.Counter
	UnknownStatus    prometheus.Counter
	NotFound         prometheus.Counter
	ProviderErrors   prometheus.Counter
	StockReversals   prometheus.Counter
	ReconcileSec     prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "webhooks_received_total"})
	ignored := prometheus.NewCounter(prometheus.CounterOpts{Name: "webhooks_ignored_total"})
	reconciled := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconciliations_total"})
	idempotent := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconciliations_idempotent_total"})
	unknown := prometheus.NewCounter(prometheus.CounterOpts{Name: "reconciliations_unknown_status_total"})
	notFound := prometheus.NewCounter(prometheus.CounterOpts{Name: "payments_not_found_total"})
	provErr := prometheus.NewCounter(prometheus.CounterOpts{Name: "provider_errors_total"})
	reversals := prometheus.NewCounter(prometheus.CounterOpts{Name: "stock_reversal_items_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(received, ignored, reconciled, idempotent, unknown, notFound, provErr, reversals, latency)
	return &Registry{
		reg:              r,
		WebhooksReceived: received,
		WebhooksIgnored:  ignored,
		Reconciled:       reconciled,
		Idempotent:       idempotent,
		UnknownStatus:    unknown,
		NotFound:         notFound,
		ProviderErrors:   provErr,
		StockReversals:   reversals,
		ReconcileSec:     latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
