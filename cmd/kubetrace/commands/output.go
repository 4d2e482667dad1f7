package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/moolen/kubetrace/internal/latency"
	"github.com/moolen/kubetrace/internal/models"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (must be one of: table, json, yaml)", format)
	}
}

// writeStructured encodes v as JSON or YAML
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not structured", format)
	}
}

// writeObjectTree prints the attribute tree indented by depth
func writeObjectTree(w io.Writer, entries []dataprovider.Entry) {
	depth := make(map[int64]int, len(entries))
	for _, e := range entries {
		if d, ok := depth[e.ParentID]; ok {
			depth[e.ID] = d + 1
		} else {
			depth[e.ID] = 0
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth[e.ID]), e.Name)
	}
}

// writeStatistics prints the segment statistics and duration histogram
func writeStatistics(w io.Writer, st latency.Statistics, buckets []latency.Bucket) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Count\t%d\n", st.Count)
	if st.Count > 0 {
		fmt.Fprintf(tw, "Min\t%s\n", time.Duration(st.Min))
		fmt.Fprintf(tw, "Max\t%s\n", time.Duration(st.Max))
		fmt.Fprintf(tw, "Mean\t%s\n", st.MeanDuration())
		fmt.Fprintf(tw, "Std dev\t%s\n", time.Duration(st.StdDev))
		fmt.Fprintf(tw, "Total\t%s\n", time.Duration(st.Total))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(buckets) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tCOUNT")
	for _, b := range buckets {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", time.Duration(b.Low), time.Duration(b.High), b.Count)
	}
	return tw.Flush()
}

// writeSegments prints one line per pod startup
func writeSegments(w io.Writer, segs []models.PodStartup) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tUID\tSTART\tEND\tDURATION")
	for _, seg := range segs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			seg.Name(), seg.UID(), seg.Start(), seg.End(), seg.Latency())
	}
	return tw.Flush()
}

// writeCPUTree prints the cgroup CPU tree with each cgroup followed by its
// threads
func writeCPUTree(w io.Writer, entries []dataprovider.CPUEntry) error {
	children := make(map[int64][]dataprovider.CPUEntry)
	for _, e := range entries {
		children[e.ParentID] = append(children[e.ParentID], e)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLEGEND\tPERCENT\tTIME")
	var walk func(parent int64, depth int)
	walk = func(parent int64, depth int) {
		for _, e := range children[parent] {
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", strings.Repeat("  ", depth),
				label(e.Labels, 0), label(e.Labels, 1), label(e.Labels, 2), label(e.Labels, 3))
			walk(e.ID, depth+1)
		}
	}
	walk(-1, 0)
	return tw.Flush()
}

func label(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return ""
}

func segmentViews(segs []models.PodStartup) []models.PodStartupView {
	views := make([]models.PodStartupView, len(segs))
	for i, seg := range segs {
		views[i] = seg.View()
	}
	return views
}
