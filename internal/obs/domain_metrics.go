package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartIntentTotal counts cart intents by kind and outcome.
	CartIntentTotal *prometheus.CounterVec
	// CartLines tracks the number of lines in the session cart.
	CartLines prometheus.Gauge
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutLatency records order gateway round-trip latency in milliseconds.
	CheckoutLatency *prometheus.HistogramVec
	// CatalogFetchTotal counts catalog loads by source and outcome.
	CatalogFetchTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers storefront Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_intent_total",
			Help:      "Count of cart intents processed by kind and result.",
		}, []string{"kind", "result"})
		CartLines = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_lines",
			Help:      "Number of lines currently held in the cart.",
		})
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout outcomes.",
		}, []string{"result"})
		CheckoutLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_gateway_duration_ms",
			Help:      "Latency of order gateway submissions in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})
		CatalogFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_total",
			Help:      "Count of catalog fetches by source and result.",
		}, []string{"source", "result"})

		mustRegisterCollector(reg, CartIntentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartIntentTotal = v
			}
		})
		mustRegisterCollector(reg, CartLines, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				CartLines = v
			}
		})
		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CheckoutLatency = v
			}
		})
		mustRegisterCollector(reg, CatalogFetchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogFetchTotal = v
			}
		})
	})
}

// ObserveIntent records an intent outcome when domain metrics are registered.
func ObserveIntent(kind, result string) {
	if CartIntentTotal != nil {
		CartIntentTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveCheckout records a checkout outcome and, when non-negative, the
// gateway latency.
func ObserveCheckout(result string, latencyMillis float64) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
	if CheckoutLatency != nil && latencyMillis >= 0 {
		CheckoutLatency.WithLabelValues(result).Observe(latencyMillis)
	}
}

// ObserveCatalogFetch records a catalog fetch outcome.
func ObserveCatalogFetch(source, result string) {
	if CatalogFetchTotal != nil {
		CatalogFetchTotal.WithLabelValues(source, result).Inc()
	}
}

// SetCartLines publishes the current line count.
func SetCartLines(n int) {
	if CartLines != nil {
		CartLines.Set(float64(n))
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("obs: register metric: %w", err))
	}
}
