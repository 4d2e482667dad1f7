// Package statesystem is an in-memory hierarchical, time-indexed interval
// store. Attributes form a tree of named nodes; each attribute holds a
// sequence of non-overlapping intervals, each with a constant StateValue.
//
// The store supports one writer and any number of concurrent readers.
package statesystem

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/moolen/kubetrace/internal/models"
)

// RootAttribute is the parent of top-level attributes
const RootAttribute = -1

var (
	// ErrDisposed is returned by every operation on a closed store
	ErrDisposed = errors.New("state system disposed")
	// ErrTimeRange is returned when a modification goes back in time
	ErrTimeRange = errors.New("time out of range")
	// ErrAttributeNotFound is returned for an unknown attribute
	ErrAttributeNotFound = errors.New("attribute not found")
)

type childKey struct {
	parent int
	name   string
}

type ongoing struct {
	start int64
	value models.StateValue
}

// Store holds the attribute tree and the intervals of every attribute
type Store struct {
	mu sync.RWMutex

	names      []string
	parents    []int
	children   map[int][]int
	childIndex map[childKey]int

	closed  [][]models.Interval
	current []ongoing

	startTime int64
	endTime   int64
	started   bool
	disposed  bool
}

// New creates an empty store
func New() *Store {
	return &Store{
		children:   make(map[int][]int),
		childIndex: make(map[childKey]int),
	}
}

// AcquireAttribute returns the attribute named name under parent, creating it
// on first use. The same (parent, name) always yields the same attribute.
func (s *Store) AcquireAttribute(parent int, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := childKey{parent: parent, name: name}
	if id, ok := s.childIndex[key]; ok {
		return id
	}
	id := len(s.names)
	s.names = append(s.names, name)
	s.parents = append(s.parents, parent)
	s.closed = append(s.closed, nil)
	s.current = append(s.current, ongoing{start: s.startTime})
	s.children[parent] = append(s.children[parent], id)
	s.childIndex[key] = id
	return id
}

// AttributeID looks up an attribute without creating it
func (s *Store) AttributeID(parent int, name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.childIndex[childKey{parent: parent, name: name}]
	return id, ok
}

// Children returns the children of parent in allocation order
func (s *Store) Children(parent int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.children[parent]...)
}

// AttributeName returns the name of an attribute
func (s *Store) AttributeName(attr int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(attr); err != nil {
		return "", err
	}
	return s.names[attr], nil
}

// Parent returns the parent of an attribute, RootAttribute for top-level ones
func (s *Store) Parent(attr int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(attr); err != nil {
		return 0, err
	}
	return s.parents[attr], nil
}

// FullPath returns the slash separated names from the root down to attr
func (s *Store) FullPath(attr int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(attr); err != nil {
		return "", err
	}
	var parts []string
	for a := attr; a != RootAttribute; a = s.parents[a] {
		parts = append(parts, s.names[a])
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/"), nil
}

// NumAttributes returns how many attributes were allocated
func (s *Store) NumAttributes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// UpdateEndTime extends the store's time range to t
func (s *Store) UpdateEndTime(t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(t)
}

// ModifyAttribute closes the ongoing interval of attr at t and opens a new
// one holding value. Setting the value already held is a no-op; modifying at
// the ongoing interval's start replaces its value in place.
func (s *Store) ModifyAttribute(t int64, value models.StateValue, attr int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(attr); err != nil {
		return err
	}
	cur := s.current[attr]
	if s.started && t < s.effectiveStart(attr) {
		return fmt.Errorf("%w: modification of %q at %d before ongoing start %d",
			ErrTimeRange, s.names[attr], t, s.effectiveStart(attr))
	}
	s.touch(t)
	cur.start = s.effectiveStart(attr)
	if cur.value.Equal(value) {
		return nil
	}
	if t == cur.start {
		s.current[attr].value = value
		return nil
	}
	s.closed[attr] = append(s.closed[attr], models.Interval{
		Attribute: attr,
		Start:     cur.start,
		End:       t,
		Value:     cur.value,
	})
	s.current[attr] = ongoing{start: t, value: value}
	return nil
}

// QueryOngoing returns the value of the ongoing interval of attr
func (s *Store) QueryOngoing(attr int) (models.StateValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(attr); err != nil {
		return models.Absent(), err
	}
	return s.current[attr].value, nil
}

// QueryOngoingStart returns the start time of the ongoing interval of attr.
// An attribute that was never modified starts at the store's start time.
func (s *Store) QueryOngoingStart(attr int) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(attr); err != nil {
		return 0, err
	}
	return s.effectiveStart(attr), nil
}

// StartTime returns the first timestamp seen by the store
func (s *Store) StartTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime
}

// CurrentEndTime returns the latest timestamp seen by the store
func (s *Store) CurrentEndTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endTime
}

// Query2D returns, for each attribute in attrs, every interval containing at
// least one of times. Times outside the store's range are ignored. Results are
// grouped by attribute in request order and sorted by start time.
func (s *Store) Query2D(attrs []int, times []int64) ([]models.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disposed {
		return nil, ErrDisposed
	}

	var valid []int64
	for _, t := range times {
		if s.started && t >= s.startTime && t <= s.endTime {
			valid = append(valid, t)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i] < valid[j] })

	var out []models.Interval
	seen := make(map[int]bool, len(attrs))
	for _, attr := range attrs {
		if attr < 0 || attr >= len(s.names) {
			return nil, fmt.Errorf("%w: %d", ErrAttributeNotFound, attr)
		}
		if seen[attr] {
			continue
		}
		seen[attr] = true
		out = append(out, s.intervalsAt(attr, valid)...)
	}
	return out, nil
}

// QueryRange returns the intervals of attr intersecting [start, end]
func (s *Store) QueryRange(attr int, start, end int64) ([]models.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(attr); err != nil {
		return nil, err
	}
	var out []models.Interval
	for _, iv := range s.all(attr) {
		if iv.Intersects(start, end) {
			out = append(out, iv)
		}
	}
	return out, nil
}

// Close disposes the store. Every later query fails with ErrDisposed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}

// intervalsAt walks the sorted intervals and the sorted times together
func (s *Store) intervalsAt(attr int, times []int64) []models.Interval {
	var out []models.Interval
	all := s.all(attr)
	ti := 0
	for i, iv := range all {
		for ti < len(times) && times[ti] < iv.Start {
			ti++
		}
		if ti == len(times) {
			break
		}
		// The ongoing interval includes the current end time.
		ongoing := i == len(all)-1 && len(all) > len(s.closed[attr])
		if iv.Contains(times[ti]) || (ongoing && times[ti] == iv.End) {
			out = append(out, iv)
		}
	}
	return out
}

// effectiveStart is the ongoing start of attr, never earlier than the store start
func (s *Store) effectiveStart(attr int) int64 {
	start := s.current[attr].start
	if len(s.closed[attr]) == 0 && start < s.startTime {
		start = s.startTime
	}
	return start
}

// all returns the closed intervals of attr followed by the ongoing one,
// truncated at the current end time
func (s *Store) all(attr int) []models.Interval {
	closed := s.closed[attr]
	out := make([]models.Interval, 0, len(closed)+1)
	out = append(out, closed...)
	cur := s.current[attr]
	start := s.effectiveStart(attr)
	if start <= s.endTime && s.started {
		out = append(out, models.Interval{Attribute: attr, Start: start, End: s.endTime, Value: cur.value})
	}
	return out
}

func (s *Store) touch(t int64) {
	if !s.started {
		s.started = true
		s.startTime = t
		s.endTime = t
		return
	}
	if t > s.endTime {
		s.endTime = t
	}
}

func (s *Store) check(attr int) error {
	if s.disposed {
		return ErrDisposed
	}
	if attr < 0 || attr >= len(s.names) {
		return fmt.Errorf("%w: %d", ErrAttributeNotFound, attr)
	}
	return nil
}
