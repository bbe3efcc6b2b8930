package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerOpenedTotal *prometheus.CounterVec
	RetryAttempts      *prometheus.CounterVec
)

// RegisterMetrics creates and registers breaker and retry collectors. Until it
// is called the package records nothing.
func RegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"})
		BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"})
		RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_retry_attempts_total",
			Help:      "Outbound HTTP attempts by target and outcome",
		}, []string{"target", "outcome"})
		reg.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, RetryAttempts)
	})
}

func recordState(target string, state State) {
	if BreakerState == nil {
		return
	}
	var v float64
	switch state {
	case Open:
		v = 1
	case HalfOpen:
		v = 2
	}
	BreakerState.WithLabelValues(target).Set(v)
}

func recordTransition(target string, from, to State) {
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
}

func recordAttempt(target, outcome string) {
	if RetryAttempts != nil {
		RetryAttempts.WithLabelValues(target, outcome).Inc()
	}
}
