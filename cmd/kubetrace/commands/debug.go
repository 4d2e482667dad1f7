package commands

import (
	"os"

	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/segmentstore"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities for kubetrace",
	Long:  `Various debugging and inspection tools for kubetrace internals.`,
}

var (
	debugSegmentsFile   string
	debugSegmentsOutput string
	debugSegmentsStats  bool
)

var debugSegmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Inspect a segment store file",
	Long: `Debug utility to dump the pod startup segments of an on-disk segment store.
A truncated trailing record is ignored.`,
	Run: runDebugSegments,
}

func init() {
	debugSegmentsCmd.Flags().StringVar(&debugSegmentsFile, "file", "", "Path to segment file (required)")
	debugSegmentsCmd.Flags().StringVarP(&debugSegmentsOutput, "output", "o", FormatTable, "Output format: table, json or yaml")
	debugSegmentsCmd.Flags().BoolVar(&debugSegmentsStats, "stats", false, "Print duration statistics instead of the segments")

	_ = debugSegmentsCmd.MarkFlagRequired("file")

	debugCmd.AddCommand(debugSegmentsCmd)
}

func runDebugSegments(cmd *cobra.Command, args []string) {
	HandleError(validateFormat(debugSegmentsOutput), "Invalid flags")

	segs, err := segmentstore.ReadFile(debugSegmentsFile)
	HandleError(err, "Failed to read segment file")

	if debugSegmentsStats {
		stats := latency.ComputeStatistics(segs)
		if debugSegmentsOutput == FormatTable {
			HandleError(writeStatistics(os.Stdout, stats, nil), "Failed to write output")
			return
		}
		HandleError(writeStructured(os.Stdout, debugSegmentsOutput, stats), "Failed to write output")
		return
	}

	if debugSegmentsOutput == FormatTable {
		HandleError(writeSegments(os.Stdout, segs), "Failed to write output")
		return
	}
	HandleError(writeStructured(os.Stdout, debugSegmentsOutput, segmentViews(segs)), "Failed to write output")
}
