package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// geocode reconciliation pipeline.
type Metrics struct {
	LookupsTotal       *prometheus.CounterVec // labels: entity_type, outcome={matched,unmatched,error}
	CandidatesAccepted prometheus.Histogram
	LookupDuration     prometheus.Histogram

	// Provider fan-out metrics.
	ProviderRequests *prometheus.CounterVec   // labels: engine, outcome={success,error,empty}
	ProviderRetries  *prometheus.CounterVec   // labels: engine
	ProviderDuration *prometheus.HistogramVec // labels: engine

	// Response store and refresh policy.
	StoreLookups    *prometheus.CounterVec // labels: result={hit,miss}
	PolicyDecisions *prometheus.CounterVec // labels: state

	PipelineRunning prometheus.Gauge
	JobsConsumed    prometheus.Counter
	ResultsProduced prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		LookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "lookups_total",
			Help:      "Geocode lookups by entity type and outcome.",
		}, []string{"entity_type", "outcome"}),
		CandidatesAccepted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoder",
			Name:      "candidates_accepted",
			Help:      "Number of candidates the reducer accepted per lookup.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geocoder",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of a complete lookup including provider fan-out.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "provider_requests_total",
			Help:      "Provider API requests by engine and outcome.",
		}, []string{"engine", "outcome"}),
		ProviderRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "provider_retries_total",
			Help:      "Retries of transient provider failures by engine.",
		}, []string{"engine"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "geocoder",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"engine"}),
		StoreLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "store_lookups_total",
			Help:      "Response store lookups by result.",
		}, []string{"result"}),
		PolicyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "refresh_policy_decisions_total",
			Help:      "Refresh policy classifications of cached requests.",
		}, []string{"state"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geocoder",
			Name:      "pipeline_running",
			Help:      "1 when the deferred-mode pipeline is active, 0 when shut down.",
		}),
		JobsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "jobs_consumed_total",
			Help:      "Total geocode jobs read from the jobs topic.",
		}),
		ResultsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoder",
			Name:      "results_produced_total",
			Help:      "Total result messages written to the results topic.",
		}),
	}

	prometheus.MustRegister(
		m.LookupsTotal,
		m.CandidatesAccepted,
		m.LookupDuration,
		m.ProviderRequests,
		m.ProviderRetries,
		m.ProviderDuration,
		m.StoreLookups,
		m.PolicyDecisions,
		m.PipelineRunning,
		m.JobsConsumed,
		m.ResultsProduced,
	)

	return m
}

// NewUnregisteredMetrics creates Metrics whose collectors are not
// registered anywhere. One-shot tools use it when no exposition endpoint
// will ever scrape them; tests use it via NewMetricsForTesting so repeated
// construction never hits "already registered" panics.
func NewUnregisteredMetrics() *Metrics {
	return &Metrics{
		LookupsTotal:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "lookups_total"}, []string{"entity_type", "outcome"}),
		CandidatesAccepted: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoder", Name: "candidates_accepted"}),
		LookupDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "geocoder", Name: "lookup_duration_seconds"}),
		ProviderRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "provider_requests_total"}, []string{"engine", "outcome"}),
		ProviderRetries:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "provider_retries_total"}, []string{"engine"}),
		ProviderDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "geocoder", Name: "provider_request_duration_seconds"}, []string{"engine"}),
		StoreLookups:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "store_lookups_total"}, []string{"result"}),
		PolicyDecisions:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "geocoder", Name: "refresh_policy_decisions_total"}, []string{"state"}),
		PipelineRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "geocoder", Name: "pipeline_running"}),
		JobsConsumed:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoder", Name: "jobs_consumed_total"}),
		ResultsProduced:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "geocoder", Name: "results_produced_total"}),
	}
}

// NewMetricsForTesting creates Metrics without touching the default
// registry.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}
