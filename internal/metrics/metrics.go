// Package metrics defines the Prometheus collectors of the coupon engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coupon_engine"

// Outcome label values.
const (
	OutcomeDiscounted    = "discounted"
	OutcomeNoDiscount    = "no_discount"
	OutcomeNotRedeemable = "not_redeemable"
	OutcomeFailed        = "failed"

	ImportCreated = "created"
	ImportSkipped = "skipped"
	ImportInvalid = "invalid"
)

// Metrics holds the collectors updated by the service layer.
type Metrics struct {
	Applications    *prometheus.CounterVec
	Redemptions     *prometheus.CounterVec
	DiscountTotal   prometheus.Counter
	EventFailures   prometheus.Counter
	ImportedCoupons *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Applications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_total",
			Help:      "Coupon apply calls by outcome.",
		}, []string{"outcome"}),
		Redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Coupon redeem calls by outcome.",
		}, []string{"outcome"}),
		DiscountTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redeemed_discount_sum",
			Help:      "Sum of discounts granted by committed redemptions.",
		}),
		EventFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Redemption events that could not be published.",
		}),
		ImportedCoupons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_coupons_total",
			Help:      "Coupon definitions processed by bulk import, by result.",
		}, []string{"result"}),
		StoreLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of coupon store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the collectors of gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
