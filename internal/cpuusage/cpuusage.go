// Package cpuusage records which thread runs on each CPU from scheduler
// switch events and answers how long each thread ran in a time window.
package cpuusage

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/statesystem"
	"github.com/moolen/kubetrace/internal/trace"
	"k8s.io/apimachinery/pkg/util/sets"
)

// CPUsAttribute is the root attribute holding one child per CPU
const CPUsAttribute = "CPUs"

// IdleTID is the thread ID of the idle task; it is never reported
const IdleTID int32 = 0

// Recorder builds the per-CPU running thread intervals of one kernel trace
type Recorder struct {
	name  string
	store *statesystem.Store
	root  int
}

// NewRecorder creates a recorder for the sub-trace called name
func NewRecorder(name string) *Recorder {
	store := statesystem.New()
	return &Recorder{
		name:  name,
		store: store,
		root:  store.AcquireAttribute(statesystem.RootAttribute, CPUsAttribute),
	}
}

// Name returns the sub-trace name
func (r *Recorder) Name() string {
	return r.name
}

// Store returns the interval store of the recorder
func (r *Recorder) Store() *statesystem.Store {
	return r.store
}

// Handle records a scheduler switch. Other events only advance the time range.
func (r *Recorder) Handle(ev trace.Event) error {
	r.store.UpdateEndTime(ev.Timestamp())
	if ev.Name() != trace.SchedSwitch {
		return nil
	}
	cpuStr, ok1 := ev.Field(trace.FieldCPU)
	tidStr, ok2 := ev.Field(trace.FieldNextTID)
	if !ok1 || !ok2 {
		return nil
	}
	cpu, err := strconv.Atoi(cpuStr)
	if err != nil {
		return fmt.Errorf("%w: cpu %q", trace.ErrMalformedEvent, cpuStr)
	}
	tid, err := strconv.ParseInt(tidStr, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: next tid %q", trace.ErrMalformedEvent, tidStr)
	}

	attr := r.store.AcquireAttribute(r.root, strconv.Itoa(cpu))
	return r.store.ModifyAttribute(ev.Timestamp(), models.Label(strconv.FormatInt(tid, 10)), attr)
}

// CPUs returns the CPUs seen so far and their attributes. It reads the
// store only, so it is safe while Handle runs.
func (r *Recorder) CPUs() (map[int]int, error) {
	out := make(map[int]int)
	for _, attr := range r.store.Children(r.root) {
		name, err := r.store.AttributeName(attr)
		if err != nil {
			return nil, err
		}
		cpu, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		out[cpu] = attr
	}
	return out, nil
}

// Usage is the on-CPU time per thread inside a window, in nanoseconds
type Usage struct {
	Threads map[int32]int64
	Total   int64
}

// Collector gathers the recorders of every kernel sub-trace
type Collector struct {
	mu        sync.RWMutex
	recorders map[string]*Recorder
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{recorders: make(map[string]*Recorder)}
}

// Recorder returns the recorder of the named sub-trace, creating it on first use
func (c *Collector) Recorder(name string) *Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.recorders[name]
	if !ok {
		r = NewRecorder(name)
		c.recorders[name] = r
	}
	return r
}

func (c *Collector) all() []*Recorder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Recorder, 0, len(c.recorders))
	for _, r := range c.recorders {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Recorder) int { return cmp.Compare(a.name, b.name) })
	return out
}

// TimeRange returns the earliest start and latest end over all sub-traces
func (c *Collector) TimeRange() (start, end int64, ok bool) {
	for _, r := range c.all() {
		if len(r.store.Children(r.root)) == 0 {
			continue
		}
		s, e := r.store.StartTime(), r.store.CurrentEndTime()
		if !ok || s < start {
			start = s
		}
		if !ok || e > end {
			end = e
		}
		ok = true
	}
	return start, end, ok
}

// CPUs returns every CPU seen across sub-traces, sorted
func (c *Collector) CPUs() []int {
	cpus := sets.New[int]()
	for _, r := range c.all() {
		seen, err := r.CPUs()
		if err != nil {
			continue
		}
		for cpu := range seen {
			cpus.Insert(cpu)
		}
	}
	return sets.List(cpus)
}

// UsageInRange sums per-thread on-CPU time inside [start, end] over the
// selected CPUs, or over every CPU when cpus is empty. The idle thread is
// excluded.
func (c *Collector) UsageInRange(cpus sets.Set[int], start, end int64) (Usage, error) {
	usage := Usage{Threads: make(map[int32]int64)}
	if end < start {
		return usage, nil
	}
	for _, r := range c.all() {
		seen, err := r.CPUs()
		if err != nil {
			return usage, err
		}
		for cpu, attr := range seen {
			if cpus.Len() > 0 && !cpus.Has(cpu) {
				continue
			}
			intervals, err := r.store.QueryRange(attr, start, end)
			if err != nil {
				return usage, err
			}
			for _, iv := range intervals {
				addInterval(&usage, iv, start, end)
			}
		}
	}
	return usage, nil
}

func addInterval(usage *Usage, iv models.Interval, start, end int64) {
	label, ok := iv.Value.LabelValue()
	if !ok {
		return
	}
	tid, err := strconv.ParseInt(label, 10, 32)
	if err != nil || int32(tid) == IdleTID {
		return
	}
	d := min(iv.End, end) - max(iv.Start, start)
	if d <= 0 {
		return
	}
	usage.Threads[int32(tid)] += d
	usage.Total += d
}
