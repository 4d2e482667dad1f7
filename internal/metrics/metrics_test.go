package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Event(AnalysisState)
	m.Event(AnalysisState)
	m.Dropped(AnalysisState, ReasonMalformed)
	m.Segment()
	m.SetPending(3)
	m.SetAttributes(12)
	m.SetAssociations(2, 5)
	m.ObserveRun(AnalysisState, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues(AnalysisState)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped.WithLabelValues(AnalysisState, ReasonMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SegmentsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingStartups))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.AttributesAllocated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CgroupsKnown))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ThreadsKnown))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Event(AnalysisCgroups)
		m.Dropped(AnalysisCgroups, ReasonStore)
		m.Segment()
		m.SetPending(1)
		m.SetAttributes(1)
		m.SetAssociations(1, 1)
		m.ObserveRun(AnalysisCgroups, time.Now())
	})
}
