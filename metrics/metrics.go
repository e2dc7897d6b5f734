// Package metrics holds the Prometheus collectors of the link pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	searches       *prometheus.CounterVec
	attempts       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	items          *prometheus.CounterVec
	inFlight       prometheus.Gauge
	jobs           *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitly",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Product searches by outcome (ok, empty, unavailable, cached).",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitly",
			Subsystem: "search",
			Name:      "attempts_total",
			Help:      "Backend HTTP attempts by result class.",
		}, []string{"result"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fitly",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall time of a search including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitly",
			Subsystem: "enrich",
			Name:      "items_total",
			Help:      "Enriched outfit items by result (linked, empty, failed, skipped).",
		}, []string{"result"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fitly",
			Subsystem: "enrich",
			Name:      "searches_in_flight",
			Help:      "Item searches currently holding a limiter slot.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitly",
			Subsystem: "enrich",
			Name:      "jobs_total",
			Help:      "Finished enrichment jobs by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.searches, m.attempts, m.searchDuration, m.items, m.inFlight, m.jobs)
	return m
}

func (m *Metrics) SearchDone(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(took.Seconds())
}

func (m *Metrics) Attempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Item(result string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(result).Inc()
}

func (m *Metrics) SlotAcquired() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) SlotReleased() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}
