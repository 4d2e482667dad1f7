package commands

import (
	"fmt"
	"os"

	"github.com/moolen/kubetrace/internal/api/parsing"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/spf13/cobra"
)

var (
	cgroupsTraces traceFlags
	cgroupsStart  string
	cgroupsEnd    string
	cgroupsCPUs   string
	cgroupsOutput string
)

var cgroupsCmd = &cobra.Command{
	Use:   "cgroups",
	Short: "Attribute CPU time to cgroups and threads",
	Long: `Associates the threads of the kernel sub-traces with their cgroups and pods
and prints the CPU time each cgroup and thread used in the window.
With --k8s-trace, cgroups are labelled with the name of their pod.`,
	RunE: runCgroups,
}

func init() {
	cgroupsCmd.Flags().StringSliceVar(&cgroupsTraces.kernel, "kernel-trace", nil, "Path to a kernel sub-trace (repeatable)")
	cgroupsCmd.Flags().StringVar(&cgroupsTraces.kubernetes, "k8s-trace", "", "Path to the Kubernetes user-space trace used for pod names")
	cgroupsCmd.Flags().StringVar(&cgroupsStart, "start", "", "Window start: nanoseconds or a date (default: start of the trace)")
	cgroupsCmd.Flags().StringVar(&cgroupsEnd, "end", "", "Window end: nanoseconds or a date (default: end of the trace)")
	cgroupsCmd.Flags().StringVar(&cgroupsCPUs, "cpus", "", "Comma separated CPUs to include (default: all)")
	cgroupsCmd.Flags().StringVarP(&cgroupsOutput, "output", "o", FormatTable, "Output format: table, json or yaml")
}

func runCgroups(cmd *cobra.Command, args []string) error {
	if err := validateFormat(cgroupsOutput); err != nil {
		return err
	}
	cpus, err := parsing.ParseCPUs(cgroupsCPUs)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cgroupsTraces.apply(cfg)
	if len(cfg.Traces.Kernel) == 0 {
		return fmt.Errorf("at least one --kernel-trace is required")
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	exp, err := runExperiment(ctx, cfg, runOptions{})
	if err != nil {
		return fmt.Errorf("cgroup analysis failed: %w", err)
	}
	defer func() { _ = exp.Close() }()

	provider := exp.CgroupCPU()
	first, last, ok := provider.TimeRange()
	if !ok {
		return fmt.Errorf("the kernel traces contain no events")
	}
	start, err := parsing.ParseOptionalTimestamp(cgroupsStart, "start", first)
	if err != nil {
		return err
	}
	end, err := parsing.ParseOptionalTimestamp(cgroupsEnd, "end", last)
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("end %d is before start %d", end, start)
	}

	tree := provider.FetchTree(ctx, dataprovider.NewTimeQuery(start, end, 2), cpus)
	if tree.Failed() {
		return fmt.Errorf("cgroup tree: %s", tree.Message)
	}
	if cgroupsOutput == FormatTable {
		return writeCPUTree(os.Stdout, tree.Model)
	}
	return writeStructured(os.Stdout, cgroupsOutput, tree.Model)
}
