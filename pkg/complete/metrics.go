package complete

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	lookupLabels = "labels"
	lookupValues = "values"
)

type metrics struct {
	cacheRequests  *prometheus.CounterVec
	lookupFailures *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logql_cli",
			Name:      "suggest_cache_requests_total",
			Help:      "Suggestion cache lookups by lookup kind and result (hit or miss).",
		}, []string{"kind", "result"}),
		lookupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logql_cli",
			Name:      "label_lookup_failures_total",
			Help:      "Failed remote label lookups, including timeouts.",
		}, []string{"kind"}),
		lookupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logql_cli",
			Name:      "label_lookup_duration_seconds",
			Help:      "Latency of remote label lookups.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"kind"}),
	}
	if reg == nil {
		return m
	}
	m.cacheRequests = register(reg, m.cacheRequests)
	m.lookupFailures = register(reg, m.lookupFailures)
	m.lookupDuration = register(reg, m.lookupDuration)
	return m
}

// register registers c, reusing an identical collector that is already
// registered so several providers can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) cacheHit(kind string)  { m.cacheRequests.WithLabelValues(kind, "hit").Inc() }
func (m *metrics) cacheMiss(kind string) { m.cacheRequests.WithLabelValues(kind, "miss").Inc() }

func (m *metrics) observeLookup(kind string, took time.Duration, err error) {
	m.lookupDuration.WithLabelValues(kind).Observe(took.Seconds())
	if err != nil {
		m.lookupFailures.WithLabelValues(kind).Inc()
	}
}
