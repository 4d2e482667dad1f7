package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moolen/kubetrace/internal/cgroups"
	"github.com/moolen/kubetrace/internal/cpuusage"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/metrics"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"github.com/moolen/kubetrace/internal/stateprovider"
	"github.com/moolen/kubetrace/internal/trace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func k8sEvent(ts int64, op, ctx string) *trace.Record {
	return trace.NewRecord(trace.KubernetesEvent, ts, map[string]string{
		trace.FieldOperationName:    op,
		trace.FieldOperationContext: ctx,
	})
}

func switchTo(ts int64, cpu, tid string) *trace.Record {
	return trace.NewRecord(trace.SchedSwitch, ts, map[string]string{
		trace.FieldCPU:     cpu,
		trace.FieldNextTID: tid,
	})
}

func newTestServer(t *testing.T) (*Server, *stateprovider.Analysis) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	analysis := stateprovider.NewAnalysis("k8s", stateprovider.Options{Metrics: m})
	require.NoError(t, analysis.Run(context.Background(), trace.NewSliceSource(
		k8sEvent(100, trace.OpEvent, "Name: rs, UID: r, Reason: SuccessfulCreate, Message: Created pod: pod-a"),
		k8sEvent(110, trace.OpEvent, "Name: pod-a, UID: p, Reason: Pulling, Owners: [rs]"),
		k8sEvent(150, trace.OpEvent, "Name: pod-a, UID: p, Reason: Started"),
		k8sEvent(200, trace.OpTerminated, "Name: pod-a"),
	)))

	segs := segmentstore.NewMemoryStore()
	require.NoError(t, segs.Append(models.RestorePodStartup(100, 150, "pod-b", "b")))
	require.NoError(t, segs.Append(models.RestorePodStartup(110, 130, "pod-a", "a")))

	usage := cpuusage.NewCollector()
	r := usage.Recorder("kernel-0")
	require.NoError(t, r.Handle(switchTo(0, "0", "42")))
	require.NoError(t, r.Handle(switchTo(100, "0", "0")))
	assoc := cgroups.NewAssociations()
	assoc.Associate(7, 42)
	assoc.SetProcname(42, "nginx")

	return New(0, Sources{
		TimeGraph: dataprovider.NewTimeGraph(analysis),
		CgroupCPU: dataprovider.NewCgroupCPU("kernel", assoc, usage, analysis.Session()),
		Segments:  segs,
		Gatherer:  reg,
	}), analysis
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kubetrace_events_total")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTimeGraphRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/timegraph/tree")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[dataprovider.Response[[]dataprovider.Entry]](t, rec)
	assert.Equal(t, dataprovider.StatusCompleted, tree.Status)
	require.Len(t, tree.Model, 3)
	assert.Equal(t, "pod-a", tree.Model[2].Name)

	rec = get(t, s, "/v1/timegraph/rows?items=2&start=100&end=200&resolution=5&search=Pull")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[dataprovider.Response[[]dataprovider.Row]](t, rec)
	require.Len(t, rows.Model, 1)
	require.Len(t, rows.Model[0].States, 4)
	assert.Equal(t, "Pulling", rows.Model[0].States[1].Label)
	assert.True(t, rows.Model[0].States[2].Dimmed)

	rec = get(t, s, "/v1/timegraph/styles")
	require.Equal(t, http.StatusOK, rec.Code)
	styles := decode[dataprovider.Response[map[dataprovider.Category]dataprovider.Style]](t, rec)
	assert.Len(t, styles.Model, 6)

	rec = get(t, s, "/v1/timegraph/arrows")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeGraphBadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	for _, target := range []string{
		"/v1/timegraph/rows?items=x",
		"/v1/timegraph/rows?search=(",
		"/v1/timegraph/rows?start=200&end=100",
		"/v1/timegraph/arrows?resolution=0",
	} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		body := decode[map[string]string](t, rec)
		assert.Equal(t, string(ErrorCodeInvalidRequest), body["error"], target)
	}
}

func TestTimeGraphDisposedStore(t *testing.T) {
	s, analysis := newTestServer(t)
	require.Equal(t, http.StatusOK, get(t, s, "/v1/timegraph/tree").Code)
	analysis.Close()

	rec := get(t, s, "/v1/timegraph/rows?items=1&start=100&end=200")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, string(ErrorCodeQueryFailed), body["error"])
	assert.Equal(t, dataprovider.MessageStateSystemFailed, body["message"])
}

func TestStartupRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/startups?sort=name")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]models.PodStartupView](t, rec)
	require.Len(t, views, 2)
	assert.Equal(t, "pod-a", views[0].Name)
	assert.Equal(t, int64(20), views[0].Duration)

	rec = get(t, s, "/v1/startups/stats?buckets=2")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StartupStats](t, rec)
	assert.Equal(t, 2, stats.Statistics.Count)
	assert.Equal(t, int64(70), stats.Statistics.Total)
	assert.Len(t, stats.Density, 2)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/startups?sort=color").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/startups/stats?buckets=-1").Code)
}

func TestCgroupRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/v1/cgroups/tree?cpus=0")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[dataprovider.Response[[]dataprovider.CPUEntry]](t, rec)
	require.Len(t, tree.Model, 3)
	assert.Equal(t, []string{"nginx", "42", "100.00 %"}, tree.Model[2].Labels[:3])

	rec = get(t, s, "/v1/cgroups/xy?start=0&end=100&resolution=3")
	require.Equal(t, http.StatusOK, rec.Code)
	xy := decode[dataprovider.Response[dataprovider.XYModel]](t, rec)
	assert.Equal(t, []int64{0, 50, 100}, xy.Model.Times)
	require.Len(t, xy.Model.Series, 1)
	assert.InDeltaSlice(t, []float64{0, 100, 100}, xy.Model.Series[0].Values, 1e-9)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/cgroups/tree?cpus=a").Code)
}

func TestServerLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "api", s.Name())
}
