package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Cycle results, used as the "result" label.
const (
	ResultOK          = "ok"
	ResultFetchError  = "fetch_error"
	ResultEmpty       = "empty"
	ResultEnrichError = "enrich_error"
	ResultStoreError  = "store_error"
	ResultSkipped     = "skipped"
)

// Metrics holds the ingester's collectors on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	cycles      *prometheus.CounterVec
	cycleDur    prometheus.Summary
	events      prometheus.Gauge
	lastSuccess prometheus.Gauge
	chunks      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}
	m.cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "event_ingester",
		Name:      "cycles_total",
		Help:      "Refresh cycles by outcome",
	}, []string{"result"})
	m.cycleDur = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "event_ingester",
		Name:      "cycle_duration_seconds",
		Help:      "Time spent in refresh cycles that ran",
	})
	m.events = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "event_ingester",
		Name:      "events",
		Help:      "Number of events in the last published artifact",
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "event_ingester",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last published artifact",
	})
	m.chunks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "event_ingester",
		Name:      "enrich_chunks_total",
		Help:      "Enrichment calls by status",
	}, []string{"status"})

	m.Registry.MustRegister(
		m.cycles, m.cycleDur, m.events, m.lastSuccess, m.chunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCycle records one trigger firing. Skipped cycles carry no duration.
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	m.cycles.WithLabelValues(result).Inc()
	if result != ResultSkipped {
		m.cycleDur.Observe(d.Seconds())
	}
}

// Published records a successful write of n events at t.
func (m *Metrics) Published(n int, t time.Time) {
	m.events.Set(float64(n))
	m.lastSuccess.Set(float64(t.Unix()))
}

// Chunk records one enrichment call.
func (m *Metrics) Chunk(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.chunks.WithLabelValues(status).Inc()
}
