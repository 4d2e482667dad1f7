// Package metrics holds the Prometheus metrics published by the analyses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis names used as the "analysis" label
const (
	AnalysisState   = "state"
	AnalysisStartup = "startup"
	AnalysisCgroups = "cgroups"
)

// Drop reasons used as the "reason" label
const (
	ReasonMalformed   = "malformed"
	ReasonMissingName = "missing_name"
	ReasonTimeRange   = "time_range"
	ReasonStore       = "store"
)

// Metrics holds Prometheus metrics for ingestion observability.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsTotal         *prometheus.CounterVec   // Events consumed per analysis
	EventsDropped       *prometheus.CounterVec   // Events skipped per analysis and reason
	RunDuration         *prometheus.HistogramVec // Wall time of a full pass
	AttributesAllocated prometheus.Gauge         // Attributes in the interval store
	SegmentsTotal       prometheus.Counter       // Pod startup segments emitted
	PendingStartups     prometheus.Gauge         // Pulling events still waiting for Started
	CgroupsKnown        prometheus.Gauge         // Cgroups with at least one thread
	ThreadsKnown        prometheus.Gauge         // Threads with a known cgroup
}

// NewMetrics creates and registers the metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubetrace_events_total",
		Help: "Total number of trace events consumed",
	}, []string{"analysis"})

	eventsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kubetrace_events_dropped_total",
		Help: "Total number of trace events skipped",
	}, []string{"analysis", "reason"})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kubetrace_run_duration_seconds",
		Help:    "Duration of a full analysis pass",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"analysis"})

	attributes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kubetrace_attributes",
		Help: "Number of attributes allocated in the interval store",
	})

	segments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kubetrace_startup_segments_total",
		Help: "Total number of pod startup segments emitted",
	})

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kubetrace_startup_pending",
		Help: "Pulling events not yet matched by a Started event",
	})

	cgroups := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kubetrace_cgroups",
		Help: "Number of cgroups with at least one known thread",
	})

	threads := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kubetrace_threads",
		Help: "Number of threads associated with a cgroup",
	})

	reg.MustRegister(eventsTotal, eventsDropped, runDuration, attributes, segments, pending, cgroups, threads)

	return &Metrics{
		EventsTotal:         eventsTotal,
		EventsDropped:       eventsDropped,
		RunDuration:         runDuration,
		AttributesAllocated: attributes,
		SegmentsTotal:       segments,
		PendingStartups:     pending,
		CgroupsKnown:        cgroups,
		ThreadsKnown:        threads,
	}
}

// Event counts one consumed event
func (m *Metrics) Event(analysis string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(analysis).Inc()
}

// Dropped counts one skipped event
func (m *Metrics) Dropped(analysis, reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(analysis, reason).Inc()
}

// ObserveRun records the duration of a pass that started at start
func (m *Metrics) ObserveRun(analysis string, start time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(analysis).Observe(time.Since(start).Seconds())
}

// SetAttributes sets the attribute gauge
func (m *Metrics) SetAttributes(n int) {
	if m == nil {
		return
	}
	m.AttributesAllocated.Set(float64(n))
}

// Segment counts one emitted startup segment
func (m *Metrics) Segment() {
	if m == nil {
		return
	}
	m.SegmentsTotal.Inc()
}

// SetPending sets the pending startup gauge
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingStartups.Set(float64(n))
}

// SetAssociations sets the cgroup and thread gauges
func (m *Metrics) SetAssociations(cgroups, threads int) {
	if m == nil {
		return
	}
	m.CgroupsKnown.Set(float64(cgroups))
	m.ThreadsKnown.Set(float64(threads))
}
