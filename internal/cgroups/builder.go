package cgroups

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/metrics"
	"github.com/moolen/kubetrace/internal/trace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// DefaultCancelCheckInterval is the number of events between cancellation checks
const DefaultCancelCheckInterval = 1024

var podUIDPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// SubTrace is one kernel event stream of a capture
type SubTrace struct {
	Name   string
	Source trace.Source
	// Total is the number of events, used for progress estimates only
	Total int64
}

// EventSink receives every decoded event of one sub-trace pass
type EventSink interface {
	Handle(ev trace.Event) error
}

// Builder runs the association pass over kernel sub-traces
type Builder struct {
	Associations        *Associations
	SamplingRate        int
	CancelCheckInterval int
	Clock               clock.PassiveClock
	Metrics             *metrics.Metrics
	// Progress, when set, receives every estimate
	Progress func(Estimate)
	// Sink, when set, returns a sink for the events of the named sub-trace
	Sink func(subTrace string) EventSink

	logger *logging.Logger
}

// NewBuilder creates a builder filling assoc
func NewBuilder(assoc *Associations) *Builder {
	return &Builder{
		Associations:        assoc,
		SamplingRate:        DefaultSamplingRate,
		CancelCheckInterval: DefaultCancelCheckInterval,
		Clock:               clock.RealClock{},
		logger:              logging.GetLogger("cgroups"),
	}
}

// BuildFiles opens the kernel trace files at paths and runs Build over them
func (b *Builder) BuildFiles(ctx context.Context, paths ...string) error {
	subTraces := make([]SubTrace, 0, len(paths))
	var files []*trace.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, path := range paths {
		total, err := trace.CountEvents(path)
		if err != nil {
			return fmt.Errorf("failed to count events of %s: %w", path, err)
		}
		f, err := trace.Open(path)
		if err != nil {
			return err
		}
		files = append(files, f)
		subTraces = append(subTraces, SubTrace{Name: filepath.Base(path), Source: f, Total: total})
	}
	return b.Build(ctx, subTraces)
}

// Build runs one pass per sub-trace concurrently. The first failing pass
// cancels the others.
func (b *Builder) Build(ctx context.Context, subTraces []SubTrace) error {
	ctx, span := otel.Tracer("kubetrace.cgroups").Start(ctx, "cgroups.Build")
	defer span.End()
	started := time.Now()
	span.SetAttributes(attribute.Int("subtraces", len(subTraces)))

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range subTraces {
		g.Go(func() error {
			return b.pass(gctx, st)
		})
	}
	err := g.Wait()

	cgroups, threads := b.Associations.Counts()
	b.Metrics.SetAssociations(cgroups, threads)
	b.Metrics.ObserveRun(metrics.AnalysisCgroups, started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	b.logger.WithContext(ctx).InfoWithFields("cgroup associations complete",
		logging.Field("subtraces", len(subTraces)),
		logging.Field("cgroups", cgroups),
		logging.Field("threads", threads),
		logging.Field("duration", time.Since(started).String()))
	return nil
}

func (b *Builder) pass(ctx context.Context, st SubTrace) error {
	logger := b.logger.WithField("subtrace", st.Name)
	checkEvery := b.CancelCheckInterval
	if checkEvery <= 0 {
		checkEvery = DefaultCancelCheckInterval
	}
	var sink EventSink
	if b.Sink != nil {
		sink = b.Sink(st.Name)
	}
	estimator := NewEstimator(b.Clock, st.Name, st.Total, b.SamplingRate)

	for {
		if estimator.Completed()%int64(checkEvery) == 0 {
			if err := ctx.Err(); err != nil {
				logger.Info("pass cancelled after %d events", estimator.Completed())
				return err
			}
		}
		ev, err := st.Source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		b.Metrics.Event(metrics.AnalysisCgroups)
		if err != nil {
			if !errors.Is(err, trace.ErrMalformedEvent) {
				return fmt.Errorf("failed to read %s: %w", st.Name, err)
			}
			b.Metrics.Dropped(metrics.AnalysisCgroups, metrics.ReasonMalformed)
			logger.Debug("skipping event: %v", err)
		} else {
			if herr := b.handle(ev); herr != nil {
				b.Metrics.Dropped(metrics.AnalysisCgroups, metrics.ReasonMalformed)
				logger.Debug("skipping %s at %d: %v", ev.Name(), ev.Timestamp(), herr)
			}
			if sink != nil {
				if serr := sink.Handle(ev); serr != nil {
					logger.Debug("sink rejected %s at %d: %v", ev.Name(), ev.Timestamp(), serr)
				}
			}
		}

		if est, ok := estimator.Tick(); ok {
			logger.Debug("%d/%d events. %s", est.Completed, est.Total, est.Message())
			if b.Progress != nil {
				b.Progress(est)
			}
		}
	}
}

// handle applies one kernel event to the associations
func (b *Builder) handle(ev trace.Event) error {
	switch ev.Name() {
	case trace.SchedSwitch:
		tidStr, ok1 := ev.Field(trace.FieldTID)
		cgroupStr, ok2 := ev.Field(trace.FieldCgroupNS)
		procname, ok3 := ev.Field(trace.FieldProcName)
		if !ok1 || !ok2 || !ok3 {
			return nil
		}
		tid, err := strconv.ParseInt(tidStr, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: tid %q", trace.ErrMalformedEvent, tidStr)
		}
		cgroup, err := strconv.ParseInt(cgroupStr, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: cgroup %q", trace.ErrMalformedEvent, cgroupStr)
		}
		b.Associations.Associate(cgroup, int32(tid))
		b.Associations.SetProcname(int32(tid), procname)
	case trace.SyscallEntryMount:
		procname, _ := ev.Field(trace.FieldProcName)
		if procname != trace.ContainerInitTag {
			return nil
		}
		cgroupStr, ok := ev.Field(trace.FieldCgroupNS)
		device, _ := ev.Field(trace.FieldDeviceName)
		if !ok || device == "" {
			return nil
		}
		cgroup, err := strconv.ParseInt(cgroupStr, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: cgroup %q", trace.ErrMalformedEvent, cgroupStr)
		}
		if uid := podUIDPattern.FindString(device); uid != "" {
			b.Associations.SetUID(cgroup, uid)
		}
	}
	return nil
}
