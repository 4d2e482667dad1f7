package stateprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/metrics"
	"github.com/moolen/kubetrace/internal/statesystem"
	"github.com/moolen/kubetrace/internal/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultCancelCheckInterval is the number of events between cancellation checks
const DefaultCancelCheckInterval = 1024

// Options tune an Analysis
type Options struct {
	CacheSize           int
	CancelCheckInterval int
	Policy              ArrowPolicy
	Metrics             *metrics.Metrics
}

// Analysis builds the attribute model of one Kubernetes trace
type Analysis struct {
	name string
	opts Options

	logger *logging.Logger

	initOnce    sync.Once
	initialized chan struct{}

	mu      sync.RWMutex
	store   *statesystem.Store
	session *Session
	err     error
	done    bool
}

// NewAnalysis creates an analysis for the trace called name
func NewAnalysis(name string, opts Options) *Analysis {
	if opts.CancelCheckInterval <= 0 {
		opts.CancelCheckInterval = DefaultCancelCheckInterval
	}
	return &Analysis{
		name:        name,
		opts:        opts,
		logger:      logging.GetLogger("stateprovider"),
		initialized: make(chan struct{}),
	}
}

// Name returns the trace name
func (a *Analysis) Name() string {
	return a.name
}

// Run consumes source once. Malformed events are skipped; the run stops on a
// read error or when ctx is cancelled, leaving what was built so far queryable.
func (a *Analysis) Run(ctx context.Context, source trace.Source) (err error) {
	ctx, span := otel.Tracer("kubetrace.stateprovider").Start(ctx, "stateprovider.Run")
	defer span.End()
	started := time.Now()

	store := statesystem.New()
	session, err := NewSession(store, a.opts.CacheSize)
	if err != nil {
		a.fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialization failed")
		return fmt.Errorf("failed to initialize analysis: %w", err)
	}
	a.mu.Lock()
	a.store = store
	a.session = session
	a.mu.Unlock()
	a.initOnce.Do(func() { close(a.initialized) })

	span.SetAttributes(attribute.String("run_id", session.ID()), attribute.String("trace", a.name))
	logger := a.logger.WithContext(ctx).WithField("run", session.ID())
	provider := NewProvider(session, a.opts.Policy)

	var events, dropped int
	defer func() {
		a.mu.Lock()
		a.done = true
		a.err = err
		a.mu.Unlock()
		a.opts.Metrics.SetAttributes(store.NumAttributes())
		a.opts.Metrics.ObserveRun(metrics.AnalysisState, started)
		span.SetAttributes(attribute.Int("events", events), attribute.Int("dropped", dropped))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	for {
		if events%a.opts.CancelCheckInterval == 0 {
			if cerr := ctx.Err(); cerr != nil {
				logger.Info("analysis of %s cancelled after %d events", a.name, events)
				return cerr
			}
		}
		ev, rerr := source.Next()
		if errors.Is(rerr, io.EOF) {
			break
		}
		events++
		a.opts.Metrics.Event(metrics.AnalysisState)
		if rerr != nil {
			if errors.Is(rerr, trace.ErrMalformedEvent) {
				dropped++
				a.opts.Metrics.Dropped(metrics.AnalysisState, metrics.ReasonMalformed)
				logger.Debug("skipping event: %v", rerr)
				continue
			}
			return fmt.Errorf("failed to read %s: %w", a.name, rerr)
		}

		store.UpdateEndTime(ev.Timestamp())
		if herr := provider.Handle(ev); herr != nil {
			dropped++
			a.opts.Metrics.Dropped(metrics.AnalysisState, dropReason(herr))
			if !errors.Is(herr, ErrMissingName) {
				logger.Debug("skipping event: %v", herr)
			}
		}
	}

	logger.InfoWithFields("state analysis complete",
		logging.Field("trace", a.name),
		logging.Field("events", events),
		logging.Field("dropped", dropped),
		logging.Field("attributes", store.NumAttributes()),
		logging.Field("duration", time.Since(started).String()))
	return nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingName):
		return metrics.ReasonMissingName
	case errors.Is(err, statesystem.ErrTimeRange):
		return metrics.ReasonTimeRange
	case errors.Is(err, trace.ErrMalformedEvent):
		return metrics.ReasonMalformed
	default:
		return metrics.ReasonStore
	}
}

func (a *Analysis) fail(err error) {
	a.mu.Lock()
	a.err = err
	a.done = true
	a.mu.Unlock()
	a.initOnce.Do(func() { close(a.initialized) })
}

// WaitForInitialization blocks until the store exists or initialization
// failed. It reports whether the store is available.
func (a *Analysis) WaitForInitialization(ctx context.Context) bool {
	select {
	case <-a.initialized:
	default:
		select {
		case <-a.initialized:
		case <-ctx.Done():
			return false
		}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store != nil
}

// StateSystem returns the store, or nil before initialization
func (a *Analysis) StateSystem() *statesystem.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

// Session returns the ingestion session, or nil before initialization
func (a *Analysis) Session() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session
}

// Done reports whether Run returned, and with which error
func (a *Analysis) Done() (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done, a.err
}

// Close disposes the store
func (a *Analysis) Close() {
	if store := a.StateSystem(); store != nil {
		store.Close()
	}
}
