package api

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/moolen/kubetrace/internal/api/parsing"
	"github.com/moolen/kubetrace/internal/api/response"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultResolution is the number of sample times when none is requested
	DefaultResolution = 100
	// MaxResolution caps the number of sample times of one query
	MaxResolution = 10000
)

// rangeFunc returns the time range the window defaults to
type rangeFunc func(ctx context.Context) (start, end int64, ok bool)

// parseTimeQuery reads start, end and resolution. Missing bounds default to
// the data's own range.
func parseTimeQuery(ctx context.Context, params url.Values, bounds rangeFunc) (dataprovider.TimeQuery, error) {
	defStart, defEnd, _ := bounds(ctx)
	start, err := parsing.ParseOptionalTimestamp(params.Get("start"), "start", defStart)
	if err != nil {
		return dataprovider.TimeQuery{}, err
	}
	end, err := parsing.ParseOptionalTimestamp(params.Get("end"), "end", defEnd)
	if err != nil {
		return dataprovider.TimeQuery{}, err
	}
	if start > end {
		return dataprovider.TimeQuery{}, parsing.NewParsingError("start must be less than or equal to end")
	}
	n, err := parsing.ParsePositiveInt(params.Get("resolution"), "resolution", DefaultResolution, MaxResolution)
	if err != nil {
		return dataprovider.TimeQuery{}, err
	}
	return dataprovider.NewTimeQuery(start, end, n), nil
}

// parseSelection adds the selected items and the search filter to a time query
func parseSelection(ctx context.Context, params url.Values, bounds rangeFunc) (dataprovider.SelectionQuery, error) {
	tq, err := parseTimeQuery(ctx, params, bounds)
	if err != nil {
		return dataprovider.SelectionQuery{}, err
	}
	items, err := parsing.ParseIDList(params.Get("items"), "items")
	if err != nil {
		return dataprovider.SelectionQuery{}, err
	}
	q := dataprovider.SelectionQuery{Times: tq.Times, Items: items}
	if search := params.Get("search"); search != "" {
		re, err := regexp.Compile(search)
		if err != nil {
			return dataprovider.SelectionQuery{}, parsing.NewParsingError("search: invalid regular expression: %v", err)
		}
		q.Search = re
	}
	return q, nil
}

func badRequest(w http.ResponseWriter, span trace.Span, logger *logging.Logger, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "Invalid request")
	logger.Debug("invalid request: %v", err)
	response.WriteError(w, http.StatusBadRequest, string(ErrorCodeInvalidRequest), err.Error())
}

// writeResponse sends a provider response; failed queries map to 503
func writeResponse[T any](w http.ResponseWriter, r *http.Request, span trace.Span, logger *logging.Logger, resp dataprovider.Response[T]) {
	span.SetAttributes(attribute.String("response.status", string(resp.Status)))
	if resp.Failed() {
		span.SetStatus(codes.Error, resp.Message)
		response.WriteError(w, http.StatusServiceUnavailable, string(ErrorCodeQueryFailed), resp.Message)
		return
	}
	if err := response.WriteSuccess(w, r, resp); err != nil {
		logger.Warn("failed to write response: %v", err)
	}
}
