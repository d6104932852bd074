// Package metrics exposes Prometheus collectors for query translation and
// materialized view rebuilds.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leaptable"

// Rebuild outcomes.
const (
	RebuildBuilt    = "built"
	RebuildUpToDate = "up_to_date"
	RebuildFailed   = "failed"
	RebuildRetry    = "retry"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	Translations    *prometheus.CounterVec
	FacetQueries    prometheus.Counter
	ViewRebuilds    *prometheus.CounterVec
	RebuildDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translations_total",
				Help:      "Number of translated queries by result.",
			},
			[]string{"result"},
		),
		FacetQueries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "facet_queries_total",
				Help:      "Number of facet aggregation queries executed.",
			},
		),
		ViewRebuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "view_rebuilds_total",
				Help:      "Number of materialized view index builds by outcome.",
			},
			[]string{"outcome"},
		),
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "view_rebuild_duration_seconds",
				Help:      "Time spent rebuilding materialized view indexes.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Translations, m.FacetQueries, m.ViewRebuilds, m.RebuildDuration)
	}
	return m
}

// ObserveTranslation counts one translation.
func (m *Metrics) ObserveTranslation(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Translations.WithLabelValues(result).Inc()
}

// ObserveFacetQueries counts executed facet queries.
func (m *Metrics) ObserveFacetQueries(n int) {
	if m == nil {
		return
	}
	m.FacetQueries.Add(float64(n))
}

// ObserveRebuild records the outcome of one rebuild attempt.
func (m *Metrics) ObserveRebuild(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ViewRebuilds.WithLabelValues(outcome).Inc()
	if outcome == RebuildBuilt {
		m.RebuildDuration.Observe(elapsed.Seconds())
	}
}
