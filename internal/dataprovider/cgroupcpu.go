package dataprovider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/moolen/kubetrace/internal/cgroups"
	"github.com/moolen/kubetrace/internal/cpuusage"
	"k8s.io/apimachinery/pkg/util/sets"
)

// TotalPrefix starts the name of the total series
const TotalPrefix = "total:"

// PodNamer returns the pod UID to name associations known so far
type PodNamer interface {
	PodNames() map[string]string
}

type cpuKeyKind uint8

const (
	keyTotal cpuKeyKind = iota
	keyCgroup
	keyThread
)

type cpuKey struct {
	kind cpuKeyKind
	id   int64
}

// CPUEntry is one line of the cgroup CPU tree. Labels are name, kind or tid,
// percentage of the window and humanized time.
type CPUEntry struct {
	ID       int64    `json:"id"`
	ParentID int64    `json:"parentId"`
	Labels   []string `json:"labels"`
	TID      int32    `json:"tid"`
	Time     int64    `json:"time"`
}

// Series is one line of an XY chart
type Series struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// XYModel holds the series of an XY chart and the shared x values
type XYModel struct {
	Times  []int64  `json:"times"`
	Series []Series `json:"series"`
}

// CgroupCPU attributes on-CPU time to cgroups and pods
type CgroupCPU struct {
	name  string
	assoc *cgroups.Associations
	usage *cpuusage.Collector
	namer PodNamer
	ids   *IDMapper[cpuKey]
}

// NewCgroupCPU creates a provider. namer may be nil.
func NewCgroupCPU(name string, assoc *cgroups.Associations, usage *cpuusage.Collector, namer PodNamer) *CgroupCPU {
	return &CgroupCPU{name: name, assoc: assoc, usage: usage, namer: namer, ids: NewIDMapper[cpuKey]()}
}

// CgroupEntryID returns the entry ID of a cgroup
func (p *CgroupCPU) CgroupEntryID(cgroup int64) int64 {
	return p.ids.ID(cpuKey{kind: keyCgroup, id: cgroup})
}

// ThreadEntryID returns the entry ID of a thread
func (p *CgroupCPU) ThreadEntryID(tid int32) int64 {
	return p.ids.ID(cpuKey{kind: keyThread, id: int64(tid)})
}

// TimeRange returns the time range covered by the kernel sub-traces
func (p *CgroupCPU) TimeRange() (start, end int64, ok bool) {
	return p.usage.TimeRange()
}

// normalizeUID brings UUID-shaped UIDs to their canonical lower case form
func normalizeUID(uid string) string {
	if u, err := uuid.Parse(uid); err == nil {
		return u.String()
	}
	return uid
}

func (p *CgroupCPU) podNames() map[string]string {
	out := make(map[string]string)
	if p.namer == nil {
		return out
	}
	for uid, name := range p.namer.PodNames() {
		out[normalizeUID(uid)] = name
	}
	return out
}

// cgroupLabel is the pod name when the cgroup's UID is a known pod, else the
// UID, else the cgroup ID
func (p *CgroupCPU) cgroupLabel(cgroup int64, names map[string]string) string {
	uid, ok := p.assoc.UID(cgroup)
	if !ok {
		return strconv.FormatInt(cgroup, 10)
	}
	if name, ok := names[normalizeUID(uid)]; ok {
		return name
	}
	return uid
}

func percent(value int64, window float64) string {
	if window <= 0 {
		return fmt.Sprintf("%.2f %%", 0.0)
	}
	return fmt.Sprintf("%.2f %%", 100*float64(value)/window)
}

func humanTime(ns int64) string {
	return humanize.SIWithDigits(float64(ns)/1e9, 3, "s")
}

func (p *CgroupCPU) window(q TimeQuery) (int64, int64, bool) {
	if start, end, ok := q.Bounds(); ok {
		return start, end, true
	}
	return p.usage.TimeRange()
}

// FetchTree returns the total row, one row per known cgroup and one row per
// thread that ran in the window and belongs to a cgroup
func (p *CgroupCPU) FetchTree(ctx context.Context, q TimeQuery, cpus sets.Set[int]) Response[[]CPUEntry] {
	start, end, ok := p.window(q)
	if !ok {
		return completed([]CPUEntry{})
	}
	usage, err := p.usage.UsageInRange(cpus, start, end)
	if err != nil {
		return failed[[]CPUEntry](MessageStateSystemFailed)
	}
	window := float64(end - start)

	rootID := p.ids.ID(cpuKey{kind: keyTotal})
	entries := []CPUEntry{{
		ID:       rootID,
		ParentID: -1,
		Labels:   []string{p.name, "total", percent(usage.Total, window), humanTime(usage.Total)},
		TID:      -1,
		Time:     usage.Total,
	}}

	cgroupTotals := make(map[int64]int64)
	var threads []CPUEntry
	for _, tid := range sets.List(sets.KeySet(usage.Threads)) {
		if ctx.Err() != nil {
			return cancelled[[]CPUEntry]()
		}
		t := usage.Threads[tid]
		cgroup, ok := p.assoc.CgroupOf(tid)
		if t == 0 || !ok {
			continue
		}
		cgroupTotals[cgroup] += t
		procname, _ := p.assoc.Procname(tid)
		threads = append(threads, CPUEntry{
			ID:       p.ThreadEntryID(tid),
			ParentID: p.CgroupEntryID(cgroup),
			Labels:   []string{procname, strconv.Itoa(int(tid)), percent(t, window), humanTime(t)},
			TID:      tid,
			Time:     t,
		})
	}

	names := p.podNames()
	for _, cgroup := range p.assoc.Cgroups() {
		t := cgroupTotals[cgroup]
		entries = append(entries, CPUEntry{
			ID:       p.CgroupEntryID(cgroup),
			ParentID: rootID,
			Labels:   []string{p.cgroupLabel(cgroup, names), "cgroup", percent(t, window), humanTime(t)},
			TID:      -1,
			Time:     t,
		})
	}
	return completed(append(entries, threads...))
}

// initialPrevTime is the start of the window ending at the first requested
// time, as wide as the gap to the next distinct time
func initialPrevTime(times []int64) int64 {
	start := times[0]
	for _, t := range times {
		if t > start {
			return start - (t - start)
		}
	}
	return start
}

func normalize(prev, t, value int64) float64 {
	return float64(value) / float64(t-prev) * 100
}

// FetchXY returns the CPU percentage series: the total, each selected cgroup
// (sum of its threads) and each selected thread. Each sample covers the window
// since the previous requested time. Times outside the recorded range stay
// zero; a repeated time copies the previous sample.
func (p *CgroupCPU) FetchXY(ctx context.Context, q SelectionQuery, cpus sets.Set[int]) Response[XYModel] {
	times := q.Times
	model := XYModel{Times: times, Series: []Series{}}
	if len(times) == 0 {
		return completed(model)
	}
	rangeStart, rangeEnd, ok := p.usage.TimeRange()

	total := Series{ID: p.ids.ID(cpuKey{kind: keyTotal}), Name: TotalPrefix + p.name, Values: make([]float64, len(times))}
	var cgroupSeries []Series
	var cgroupIDs []int64
	var threadSeries []Series
	threadIndex := make(map[int32]int)
	for _, item := range q.Items {
		key, known := p.ids.Key(item)
		if !known {
			continue
		}
		switch key.kind {
		case keyCgroup:
			cgroupIDs = append(cgroupIDs, key.id)
			cgroupSeries = append(cgroupSeries, Series{
				ID: item, Name: fmt.Sprintf("%d:%s", key.id, p.name), Values: make([]float64, len(times)),
			})
		case keyThread:
			threadIndex[int32(key.id)] = len(threadSeries)
			threadSeries = append(threadSeries, Series{
				ID: item, Name: fmt.Sprintf("%s:%d", p.name, key.id), Values: make([]float64, len(times)),
			})
		}
	}

	prev := max(initialPrevTime(times), rangeStart)
	for i, t := range times {
		if ctx.Err() != nil {
			return cancelled[XYModel]()
		}
		if !ok || t < rangeStart || t > rangeEnd {
			prev = t
			continue
		}
		switch {
		case prev < t:
			usage, err := p.usage.UsageInRange(cpus, prev, t)
			if err != nil {
				return failed[XYModel](MessageStateSystemFailed)
			}
			for tid, ns := range usage.Threads {
				v := normalize(prev, t, ns)
				if j, ok := threadIndex[tid]; ok {
					threadSeries[j].Values[i] = v
				}
				for j, cgroup := range cgroupIDs {
					if p.assoc.HasThread(cgroup, tid) {
						cgroupSeries[j].Values[i] += v
					}
				}
			}
			total.Values[i] = normalize(prev, t, usage.Total)
		case i > 0:
			total.Values[i] = total.Values[i-1]
			for _, s := range cgroupSeries {
				s.Values[i] = s.Values[i-1]
			}
			for _, s := range threadSeries {
				s.Values[i] = s.Values[i-1]
			}
		}
		prev = t
	}

	model.Series = append(model.Series, total)
	model.Series = append(model.Series, cgroupSeries...)
	model.Series = append(model.Series, threadSeries...)
	return completed(model)
}
