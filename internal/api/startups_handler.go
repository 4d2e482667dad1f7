package api

import (
	"net/http"

	"github.com/moolen/kubetrace/internal/api/parsing"
	"github.com/moolen/kubetrace/internal/api/response"
	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBuckets is the number of histogram buckets when none is requested
const DefaultBuckets = 10

// StartupStats is the body of /v1/startups/stats
type StartupStats struct {
	Statistics latency.Statistics `json:"statistics"`
	Density    []latency.Bucket   `json:"density"`
}

// startupsHandler serves the pod startup segments
type startupsHandler struct {
	store  segmentstore.Store
	logger *logging.Logger
	tracer trace.Tracer
}

func (h *startupsHandler) segments(w http.ResponseWriter, span trace.Span) ([]models.PodStartup, bool) {
	segs, err := h.store.Segments()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "segment store failed")
		h.logger.Error("failed to read segments: %v", err)
		response.WriteError(w, http.StatusServiceUnavailable, string(ErrorCodeQueryFailed), "Segment store failed")
		return nil, false
	}
	span.SetAttributes(attribute.Int("response.segments", len(segs)))
	return segs, true
}

func (h *startupsHandler) list(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "startups.list", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	aspect, err := latency.ParseAspect(r.URL.Query().Get("sort"))
	if err != nil {
		badRequest(w, span, h.logger, parsing.NewParsingError("sort: %v", err))
		return
	}
	segs, ok := h.segments(w, span)
	if !ok {
		return
	}
	latency.Sort(segs, aspect)
	views := make([]models.PodStartupView, len(segs))
	for i, seg := range segs {
		views[i] = seg.View()
	}
	if err := response.WriteSuccess(w, r, views); err != nil {
		h.logger.Warn("failed to write response: %v", err)
	}
}

func (h *startupsHandler) stats(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "startups.stats", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	buckets, err := parsing.ParsePositiveInt(r.URL.Query().Get("buckets"), "buckets", DefaultBuckets, 1000)
	if err != nil {
		badRequest(w, span, h.logger, err)
		return
	}
	segs, ok := h.segments(w, span)
	if !ok {
		return
	}
	body := StartupStats{
		Statistics: latency.ComputeStatistics(segs),
		Density:    latency.Density(segs, buckets),
	}
	if err := response.WriteSuccess(w, r, body); err != nil {
		h.logger.Warn("failed to write response: %v", err)
	}
}
