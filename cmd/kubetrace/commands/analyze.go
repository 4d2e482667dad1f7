package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/experiment"
	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	analyzeTraces      traceFlags
	analyzeOutput      string
	analyzeOwnerArrows bool
	analyzeBuckets     int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run every analysis over a capture and print a report",
	Long: `Runs the object state, pod startup and cgroup analyses over the given traces
and prints the object tree, the startup statistics and the cgroup CPU tree.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTraces.kubernetes, "k8s-trace", "", "Path to the Kubernetes user-space trace")
	analyzeCmd.Flags().StringSliceVar(&analyzeTraces.kernel, "kernel-trace", nil, "Path to a kernel sub-trace (repeatable)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", FormatTable, "Output format: table, json or yaml")
	analyzeCmd.Flags().BoolVar(&analyzeOwnerArrows, "owner-arrows", false, "Draw edges from owners to the objects they create")
	analyzeCmd.Flags().IntVar(&analyzeBuckets, "buckets", 10, "Number of buckets of the startup duration histogram")
}

// analysisReport is the structured output of analyze
type analysisReport struct {
	Name       string                  `json:"name" yaml:"name"`
	Objects    []dataprovider.Entry    `json:"objects" yaml:"objects"`
	Startups   []models.PodStartupView `json:"startups" yaml:"startups"`
	Statistics latency.Statistics      `json:"statistics" yaml:"statistics"`
	Density    []latency.Bucket        `json:"density" yaml:"density"`
	Cgroups    []dataprovider.CPUEntry `json:"cgroups" yaml:"cgroups"`
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := validateFormat(analyzeOutput); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	analyzeTraces.apply(cfg)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	exp, err := runExperiment(ctx, cfg, runOptions{ownerArrows: analyzeOwnerArrows})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	defer func() { _ = exp.Close() }()

	report, err := buildReport(ctx, exp, analyzeBuckets)
	if err != nil {
		return err
	}
	return printReport(os.Stdout, analyzeOutput, report)
}

func buildReport(ctx context.Context, exp *experiment.Experiment, buckets int) (*analysisReport, error) {
	report := &analysisReport{Name: exp.Name}

	if exp.State.Session() != nil {
		tree := exp.TimeGraph().FetchTree(ctx)
		if tree.Failed() {
			return nil, fmt.Errorf("object tree: %s", tree.Message)
		}
		report.Objects = tree.Model
	}

	segs, err := exp.Segments.Segments()
	if err != nil {
		return nil, fmt.Errorf("startup segments: %w", err)
	}
	latency.Sort(segs, latency.AspectStart)
	report.Startups = segmentViews(segs)
	report.Statistics = latency.ComputeStatistics(segs)
	report.Density = latency.Density(segs, buckets)

	cpu := exp.CgroupCPU().FetchTree(ctx, dataprovider.TimeQuery{}, sets.New[int]())
	if cpu.Failed() {
		return nil, fmt.Errorf("cgroup tree: %s", cpu.Message)
	}
	report.Cgroups = cpu.Model
	return report, nil
}

func printReport(w io.Writer, format string, report *analysisReport) error {
	if format != FormatTable {
		return writeStructured(w, format, report)
	}
	fmt.Fprintf(w, "Experiment: %s\n\n", report.Name)
	if len(report.Objects) > 0 {
		fmt.Fprintln(w, "Objects:")
		writeObjectTree(w, report.Objects)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "Pod startups:")
	if err := writeStatistics(w, report.Statistics, report.Density); err != nil {
		return err
	}
	if len(report.Cgroups) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "CPU usage:")
		return writeCPUTree(w, report.Cgroups)
	}
	return nil
}
