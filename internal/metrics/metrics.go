package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported by the cart engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	mutations       *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	catalogLookups  *prometheus.HistogramVec
}

// New registers the cart collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations applied, by operation.",
	}, []string{"op"})
	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Failed durable cart reads and writes, by operation.",
	}, []string{"op"})
	catalogLookups := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_catalog_lookup_seconds",
		Help:    "Latency of catalog lookups made by the bundle resolver.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "result"})
	reg.MustRegister(mutations, persistFailures, catalogLookups)
	return &Metrics{
		mutations:       mutations,
		persistFailures: persistFailures,
		catalogLookups:  catalogLookups,
	}
}

func (m *Metrics) IncMutation(op string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *Metrics) IncPersistFailure(op string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveCatalogLookup records a lookup; result is "found", "missing" or "error".
func (m *Metrics) ObserveCatalogLookup(op, result string, d time.Duration) {
	if m == nil || m.catalogLookups == nil {
		return
	}
	m.catalogLookups.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
