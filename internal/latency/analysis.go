package latency

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/metrics"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"github.com/moolen/kubetrace/internal/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultCancelCheckInterval = 1024

// Analysis runs the pairing engine over a Kubernetes trace into a segment store
type Analysis struct {
	CancelCheckInterval int
	Metrics             *metrics.Metrics

	logger *logging.Logger
}

// NewAnalysis creates a startup latency analysis
func NewAnalysis(m *metrics.Metrics, cancelCheckInterval int) *Analysis {
	if cancelCheckInterval <= 0 {
		cancelCheckInterval = defaultCancelCheckInterval
	}
	return &Analysis{
		CancelCheckInterval: cancelCheckInterval,
		Metrics:             m,
		logger:              logging.GetLogger("latency"),
	}
}

// Run pairs the startups of source into store. Malformed events are skipped.
// Startups still pending when the stream ends, or when ctx is cancelled, are
// discarded.
func (a *Analysis) Run(ctx context.Context, source trace.Source, store segmentstore.Store) (err error) {
	ctx, span := otel.Tracer("kubetrace.latency").Start(ctx, "latency.Run")
	defer span.End()
	started := time.Now()
	logger := a.logger.WithContext(ctx)

	pairing := NewPairing()
	var events, segments int
	defer func() {
		pairing.Reset()
		a.Metrics.SetPending(0)
		a.Metrics.ObserveRun(metrics.AnalysisStartup, started)
		span.SetAttributes(attribute.Int("events", events), attribute.Int("segments", segments))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	for {
		if events%a.CancelCheckInterval == 0 {
			if cerr := ctx.Err(); cerr != nil {
				logger.Info("startup analysis cancelled after %d events", events)
				return cerr
			}
			a.Metrics.SetPending(pairing.Pending())
		}
		ev, rerr := source.Next()
		if errors.Is(rerr, io.EOF) {
			break
		}
		events++
		a.Metrics.Event(metrics.AnalysisStartup)
		if rerr != nil {
			if errors.Is(rerr, trace.ErrMalformedEvent) {
				a.Metrics.Dropped(metrics.AnalysisStartup, metrics.ReasonMalformed)
				logger.Debug("skipping event: %v", rerr)
				continue
			}
			return fmt.Errorf("failed to read trace: %w", rerr)
		}

		seg, ok := pairing.Handle(ev)
		if !ok {
			continue
		}
		if err := store.Append(seg); err != nil {
			// A Started event older than its Pulling yields an inverted segment.
			if models.IsValidationError(err) {
				reason := metrics.ReasonMalformed
				if seg.End() < seg.Start() {
					reason = metrics.ReasonTimeRange
				}
				a.Metrics.Dropped(metrics.AnalysisStartup, reason)
				logger.Debug("dropping startup: %v", err)
				continue
			}
			return fmt.Errorf("failed to store startup of %s: %w", seg.Name(), err)
		}
		segments++
		a.Metrics.Segment()
	}

	if n := pairing.Pending(); n > 0 {
		logger.Debug("discarding %d unmatched startups", n)
	}
	logger.InfoWithFields("startup analysis complete",
		logging.Field("events", events),
		logging.Field("segments", segments),
		logging.Field("duration", time.Since(started).String()))
	return nil
}
