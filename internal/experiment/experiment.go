// Package experiment runs every analysis over one capture: the Kubernetes
// object states and startup latencies from the user-space trace, and the
// cgroup associations and CPU usage from the kernel sub-traces.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/moolen/kubetrace/internal/cgroups"
	"github.com/moolen/kubetrace/internal/config"
	"github.com/moolen/kubetrace/internal/cpuusage"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/metrics"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"github.com/moolen/kubetrace/internal/stateprovider"
	"github.com/moolen/kubetrace/internal/trace"
	"golang.org/x/sync/errgroup"
)

// Options selects the traces and tunes the runners
type Options struct {
	KubernetesTrace string
	KernelTraces    []string
	Analysis        config.AnalysisConfig

	// Segments receives the startup segments; nil keeps them in memory
	Segments segmentstore.Store
	Metrics  *metrics.Metrics
	Policy   stateprovider.ArrowPolicy
	Progress func(cgroups.Estimate)
}

// Experiment holds the results of every analysis
type Experiment struct {
	Name         string
	State        *stateprovider.Analysis
	Segments     segmentstore.Store
	Associations *cgroups.Associations
	Usage        *cpuusage.Collector
}

// Run runs the analyses concurrently and returns once all finished. The
// first failing analysis cancels the others.
func Run(ctx context.Context, opts Options) (*Experiment, error) {
	if opts.KubernetesTrace == "" && len(opts.KernelTraces) == 0 {
		return nil, fmt.Errorf("no trace given")
	}
	logger := logging.GetLogger("experiment")

	exp := &Experiment{
		Name:         experimentName(opts),
		Segments:     opts.Segments,
		Associations: cgroups.NewAssociations(),
		Usage:        cpuusage.NewCollector(),
	}
	if exp.Segments == nil {
		exp.Segments = segmentstore.NewMemoryStore()
	}
	exp.State = stateprovider.NewAnalysis(exp.Name, stateprovider.Options{
		CacheSize:           opts.Analysis.AttributeCacheSize,
		CancelCheckInterval: opts.Analysis.CancelCheckInterval,
		Policy:              opts.Policy,
		Metrics:             opts.Metrics,
	})

	g, gctx := errgroup.WithContext(ctx)
	if path := opts.KubernetesTrace; path != "" {
		g.Go(func() error {
			return withTrace(path, func(src trace.Source) error {
				return exp.State.Run(gctx, src)
			})
		})
		g.Go(func() error {
			a := latency.NewAnalysis(opts.Metrics, opts.Analysis.CancelCheckInterval)
			return withTrace(path, func(src trace.Source) error {
				return a.Run(gctx, src, exp.Segments)
			})
		})
	}
	if len(opts.KernelTraces) > 0 {
		g.Go(func() error {
			b := cgroups.NewBuilder(exp.Associations)
			b.SamplingRate = opts.Analysis.ProgressSampling
			b.CancelCheckInterval = opts.Analysis.CancelCheckInterval
			b.Metrics = opts.Metrics
			b.Progress = opts.Progress
			b.Sink = func(subTrace string) cgroups.EventSink {
				return exp.Usage.Recorder(subTrace)
			}
			return b.BuildFiles(gctx, opts.KernelTraces...)
		})
	}
	if err := g.Wait(); err != nil {
		return exp, err
	}
	logger.Debug("experiment %s complete", exp.Name)
	return exp, nil
}

func withTrace(path string, fn func(trace.Source) error) error {
	f, err := trace.Open(path)
	if err != nil {
		return err
	}
	return errors.Join(fn(f), f.Close())
}

func experimentName(opts Options) string {
	if opts.KubernetesTrace != "" {
		return filepath.Base(opts.KubernetesTrace)
	}
	return filepath.Base(opts.KernelTraces[0])
}

// TimeGraph returns the object time-graph provider
func (e *Experiment) TimeGraph() *dataprovider.TimeGraph {
	return dataprovider.NewTimeGraph(e.State)
}

// CgroupCPU returns the cgroup CPU provider. Pod names come from the state
// analysis when it ran.
func (e *Experiment) CgroupCPU() *dataprovider.CgroupCPU {
	var namer dataprovider.PodNamer
	if session := e.State.Session(); session != nil {
		namer = session
	}
	return dataprovider.NewCgroupCPU(e.Name, e.Associations, e.Usage, namer)
}

// Close disposes the state store and closes the segment store
func (e *Experiment) Close() error {
	e.State.Close()
	return e.Segments.Close()
}
