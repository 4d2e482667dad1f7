// Package cgroups associates kernel threads with their control group, the
// control group with the pod UID it runs, and threads with process names, from
// kernel scheduling and mount events.
package cgroups

import (
	"slices"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
)

// NoCgroup is the cgroup namespace ID of threads outside any container
const NoCgroup int64 = 0

// Associations holds the maps built from kernel traces. All methods are safe
// for concurrent use; passes over different sub-traces share one instance.
// Nothing is ever removed.
type Associations struct {
	mu          sync.RWMutex
	cgroupTids  map[int64]sets.Set[int32]
	tidCgroup   map[int32]int64
	cgroupUID   map[int64]string
	tidProcname map[int32]string
}

// NewAssociations creates empty associations
func NewAssociations() *Associations {
	return &Associations{
		cgroupTids:  make(map[int64]sets.Set[int32]),
		tidCgroup:   make(map[int32]int64),
		cgroupUID:   make(map[int64]string),
		tidProcname: make(map[int32]string),
	}
}

// Associate records that tid runs in cgroup. The latest cgroup of a thread
// wins; NoCgroup is ignored.
func (a *Associations) Associate(cgroup int64, tid int32) {
	if cgroup == NoCgroup {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	tids, ok := a.cgroupTids[cgroup]
	if !ok {
		tids = sets.New[int32]()
		a.cgroupTids[cgroup] = tids
	}
	tids.Insert(tid)
	a.tidCgroup[tid] = cgroup
}

// SetProcname records the process name of tid
func (a *Associations) SetProcname(tid int32, procname string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tidProcname[tid] = procname
}

// SetUID records the pod UID running in cgroup
func (a *Associations) SetUID(cgroup int64, uid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cgroupUID[cgroup] = uid
}

// CgroupOf returns the cgroup tid last ran in
func (a *Associations) CgroupOf(tid int32) (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cgroup, ok := a.tidCgroup[tid]
	return cgroup, ok
}

// Threads returns every thread ever seen in cgroup, sorted
func (a *Associations) Threads(cgroup int64) []int32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return sets.List(a.cgroupTids[cgroup])
}

// HasThread reports whether tid was ever seen in cgroup
func (a *Associations) HasThread(cgroup int64, tid int32) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cgroupTids[cgroup].Has(tid)
}

// UID returns the pod UID of cgroup
func (a *Associations) UID(cgroup int64) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	uid, ok := a.cgroupUID[cgroup]
	return uid, ok
}

// Procname returns the process name of tid
func (a *Associations) Procname(tid int32) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	name, ok := a.tidProcname[tid]
	return name, ok
}

// Cgroups returns every cgroup with at least one thread, sorted
func (a *Associations) Cgroups() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int64, 0, len(a.cgroupTids))
	for cgroup := range a.cgroupTids {
		out = append(out, cgroup)
	}
	slices.Sort(out)
	return out
}

// Counts returns the number of cgroups and of threads with a cgroup
func (a *Associations) Counts() (cgroups, threads int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.cgroupTids), len(a.tidCgroup)
}
