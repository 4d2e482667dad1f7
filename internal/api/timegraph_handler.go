package api

import (
	"net/http"

	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// timeGraphHandler serves the Kubernetes object time graph
type timeGraphHandler struct {
	provider *dataprovider.TimeGraph
	logger   *logging.Logger
	tracer   trace.Tracer
}

func (h *timeGraphHandler) tree(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "timegraph.tree", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	resp := h.provider.FetchTree(ctx)
	span.SetAttributes(attribute.Int("response.entries", len(resp.Model)))
	writeResponse(w, r, span, h.logger, resp)
}

func (h *timeGraphHandler) rows(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "timegraph.rows", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	q, err := parseSelection(ctx, r.URL.Query(), h.provider.TimeRange)
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	span.SetAttributes(attribute.Int("query.items", len(q.Items)), attribute.Int("query.times", len(q.Times)))
	writeResponse(w, r, span, h.logger, h.provider.FetchRows(ctx, q))
}

func (h *timeGraphHandler) arrows(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "timegraph.arrows", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	q, err := parseTimeQuery(ctx, r.URL.Query(), h.provider.TimeRange)
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	writeResponse(w, r, span, h.logger, h.provider.FetchArrows(ctx, q))
}

func (h *timeGraphHandler) styles(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "timegraph.styles", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	writeResponse(w, r, span, h.logger, h.provider.FetchStyles())
}
