package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moolen/kubetrace/internal/config"
	"github.com/moolen/kubetrace/internal/experiment"
	"github.com/moolen/kubetrace/internal/metrics"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"github.com/moolen/kubetrace/internal/stateprovider"
	"github.com/prometheus/client_golang/prometheus"
)

// SegmentFile is the name of the segment store inside the data directory
const SegmentFile = "startups.seg"

// traceFlags are the trace selection flags shared by the analysis commands.
// Non-empty flags override the config file.
type traceFlags struct {
	kubernetes string
	kernel     []string
}

func (f traceFlags) apply(cfg *config.Config) {
	if f.kubernetes != "" {
		cfg.Traces.Kubernetes = f.kubernetes
	}
	if len(f.kernel) > 0 {
		cfg.Traces.Kernel = f.kernel
	}
}

// openSegmentStore opens the segment file of dataDir, creating the directory
// when needed
func openSegmentStore(dataDir string) (*segmentstore.FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return segmentstore.OpenFileStore(filepath.Join(dataDir, SegmentFile))
}

type runOptions struct {
	segments    segmentstore.Store
	registerer  prometheus.Registerer
	ownerArrows bool
}

// runExperiment runs every analysis the configured traces allow
func runExperiment(ctx context.Context, cfg *config.Config, opts runOptions) (*experiment.Experiment, error) {
	var m *metrics.Metrics
	if opts.registerer != nil {
		m = metrics.NewMetrics(opts.registerer)
	}
	var policy stateprovider.ArrowPolicy
	if opts.ownerArrows {
		policy = stateprovider.OwnerArrows
	}
	progress := newProgressPrinter(os.Stderr)
	defer progress.Done()

	return experiment.Run(ctx, experiment.Options{
		KubernetesTrace: cfg.Traces.Kubernetes,
		KernelTraces:    cfg.Traces.Kernel,
		Analysis:        cfg.Analysis,
		Segments:        opts.segments,
		Metrics:         m,
		Policy:          policy,
		Progress:        progress.Report,
	})
}
