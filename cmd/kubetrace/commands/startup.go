package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/trace"
	"github.com/spf13/cobra"
)

var (
	startupTrace   string
	startupDataDir string
	startupSort    string
	startupOutput  string
	startupReset   bool
)

var startupCmd = &cobra.Command{
	Use:   "startup",
	Short: "Measure pod startup latency",
	Long: `Pairs the Pulling and Started events of each pod into startup segments,
appends them to the segment store of the data directory and prints every
segment of the store.`,
	RunE: runStartup,
}

func init() {
	startupCmd.Flags().StringVar(&startupTrace, "k8s-trace", "", "Path to the Kubernetes user-space trace")
	startupCmd.Flags().StringVar(&startupDataDir, "data-dir", "", "Directory of the segment store (overrides data_dir)")
	startupCmd.Flags().StringVar(&startupSort, "sort", string(latency.AspectStart), "Sort by: name, uid, start or duration")
	startupCmd.Flags().StringVarP(&startupOutput, "output", "o", FormatTable, "Output format: table, json or yaml")
	startupCmd.Flags().BoolVar(&startupReset, "reset", false, "Discard previously stored segments")
}

func runStartup(cmd *cobra.Command, args []string) error {
	if err := validateFormat(startupOutput); err != nil {
		return err
	}
	aspect, err := latency.ParseAspect(startupSort)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	traceFlags{kubernetes: startupTrace}.apply(cfg)
	if startupDataDir != "" {
		cfg.DataDir = startupDataDir
	}
	if cfg.Traces.Kubernetes == "" {
		return fmt.Errorf("--k8s-trace is required")
	}
	logger := logging.GetLogger("startup")

	if startupReset {
		path := filepath.Join(cfg.DataDir, SegmentFile)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to reset segment store: %w", err)
		}
	}
	store, err := openSegmentStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close segment store: %v", err)
		}
	}()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	f, err := trace.Open(cfg.Traces.Kubernetes)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	before := store.Len()
	if err := latency.NewAnalysis(nil, cfg.Analysis.CancelCheckInterval).Run(ctx, f, store); err != nil {
		return fmt.Errorf("startup analysis failed: %w", err)
	}
	logger.Info("Stored %d new segments in %s", store.Len()-before, store.Path())

	segs, err := store.Segments()
	if err != nil {
		return err
	}
	latency.Sort(segs, aspect)
	if startupOutput == FormatTable {
		return writeSegments(os.Stdout, segs)
	}
	return writeStructured(os.Stdout, startupOutput, segmentViews(segs))
}
