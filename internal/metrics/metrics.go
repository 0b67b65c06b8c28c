// Package metrics exposes Prometheus counters for enrichment and sync runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/maps-enrich/internal/model"
)

// Metrics provides observability for enrichment runs. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Terminal outcomes by status
	Outcomes *prometheus.CounterVec

	// SerpAPI search latency by result: "ok", "error"
	SearchLatency *prometheus.HistogramVec

	// Account pages fetched from Salesforce
	Pages prometheus.Counter

	// Salesforce sync results by sync status
	SyncResults *prometheus.CounterVec

	// Price rows rewritten by reprice
	Repriced prometheus.Counter
}

// New registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "maps_enrich_outcomes_total",
			Help: "Enrichment outcomes by terminal status",
		}, []string{"status"}),

		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maps_enrich_search_duration_seconds",
			Help:    "Duration of SerpAPI searches including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),

		Pages: f.NewCounter(prometheus.CounterOpts{
			Name: "maps_enrich_pages_total",
			Help: "Account pages fetched from Salesforce",
		}),

		SyncResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "maps_enrich_sync_results_total",
			Help: "Staged rows pushed to Salesforce by resulting sync status",
		}, []string{"status"}),

		Repriced: f.NewCounter(prometheus.CounterOpts{
			Name: "maps_enrich_repriced_total",
			Help: "Staged prices rewritten by re-normalization",
		}),
	}
}

// RecordOutcome counts one terminal outcome.
func (m *Metrics) RecordOutcome(status model.Status) {
	if m != nil {
		m.Outcomes.WithLabelValues(string(status)).Inc()
	}
}

// ObserveSearch records one search call.
func (m *Metrics) ObserveSearch(d time.Duration, err error) {
	if m != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.SearchLatency.WithLabelValues(result).Observe(d.Seconds())
	}
}

// RecordPage counts one fetched page.
func (m *Metrics) RecordPage() {
	if m != nil {
		m.Pages.Inc()
	}
}

// RecordSync counts one reconciled row.
func (m *Metrics) RecordSync(status model.SyncStatus) {
	if m != nil {
		m.SyncResults.WithLabelValues(string(status)).Inc()
	}
}

// RecordReprice counts one rewritten price.
func (m *Metrics) RecordReprice() {
	if m != nil {
		m.Repriced.Inc()
	}
}
