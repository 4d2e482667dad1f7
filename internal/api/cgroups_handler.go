package api

import (
	"context"
	"net/http"

	"github.com/moolen/kubetrace/internal/api/parsing"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// cgroupsHandler serves the per-cgroup CPU usage
type cgroupsHandler struct {
	provider *dataprovider.CgroupCPU
	logger   *logging.Logger
	tracer   trace.Tracer
}

func (h *cgroupsHandler) timeRange(context.Context) (int64, int64, bool) {
	return h.provider.TimeRange()
}

func (h *cgroupsHandler) tree(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "cgroups.tree", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	params := r.URL.Query()
	cpus, err := parsing.ParseCPUs(params.Get("cpus"))
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	q, err := parseTimeQuery(ctx, params, h.timeRange)
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	// Only the window bounds matter for the tree.
	start, end, _ := q.Bounds()
	resp := h.provider.FetchTree(ctx, dataprovider.TimeQuery{Times: []int64{start, end}}, cpus)
	span.SetAttributes(attribute.Int("response.entries", len(resp.Model)))
	writeResponse(w, r, span, h.logger, resp)
}

func (h *cgroupsHandler) xy(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "cgroups.xy", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	params := r.URL.Query()
	cpus, err := parsing.ParseCPUs(params.Get("cpus"))
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	q, err := parseSelection(ctx, params, h.timeRange)
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("query.items", len(q.Items)), attribute.Int("query.times", len(q.Times)))
	writeResponse(w, r, span, h.logger, h.provider.FetchXY(ctx, q, cpus))
}
