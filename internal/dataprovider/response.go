// Package dataprovider answers tree, row, arrow and XY queries over the
// results of the analyses, in the shape generic time-graph and chart viewers
// consume.
package dataprovider

import (
	"sort"
	"sync"
)

// Status is the outcome of a query
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Status messages
const (
	MessageCompleted         = "Completed"
	MessageInitFailed        = "Analysis initialization failed"
	MessageStateSystemFailed = "State system failed"
	MessageCancelled         = "Task cancelled"
)

// Response wraps a query result with its status. A cancelled query is
// Completed with an empty model.
type Response[T any] struct {
	Model   T      `json:"model"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Failed reports whether the query failed
func (r Response[T]) Failed() bool {
	return r.Status == StatusFailed
}

func completed[T any](model T) Response[T] {
	return Response[T]{Model: model, Status: StatusCompleted, Message: MessageCompleted}
}

func failed[T any](message string) Response[T] {
	return Response[T]{Status: StatusFailed, Message: message}
}

func cancelled[T any]() Response[T] {
	return Response[T]{Status: StatusCompleted, Message: MessageCancelled}
}

// TimeQuery asks for data at a set of times
type TimeQuery struct {
	Times []int64
}

// NewTimeQuery returns n evenly spaced times from start to end inclusive.
// n <= 1 yields only start.
func NewTimeQuery(start, end int64, n int) TimeQuery {
	if n <= 1 || end <= start {
		return TimeQuery{Times: []int64{start}}
	}
	times := make([]int64, n)
	step := float64(end-start) / float64(n-1)
	for i := range times {
		times[i] = start + int64(float64(i)*step)
	}
	times[n-1] = end
	return TimeQuery{Times: times}
}

// Bounds returns the smallest and largest requested time
func (q TimeQuery) Bounds() (start, end int64, ok bool) {
	if len(q.Times) == 0 {
		return 0, 0, false
	}
	sorted := append([]int64(nil), q.Times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[0], sorted[len(sorted)-1], true
}

// IDMapper hands out stable entry IDs for keys. IDs start at 0 and follow
// first use.
type IDMapper[K comparable] struct {
	mu   sync.Mutex
	ids  map[K]int64
	keys map[int64]K
	next int64
}

// NewIDMapper creates an empty mapper
func NewIDMapper[K comparable]() *IDMapper[K] {
	return &IDMapper[K]{ids: make(map[K]int64), keys: make(map[int64]K)}
}

// ID returns the entry ID of key, assigning one on first use
func (m *IDMapper[K]) ID(key K) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[key]; ok {
		return id
	}
	id := m.next
	m.next++
	m.ids[key] = id
	m.keys[id] = key
	return id
}

// Key returns the key behind an entry ID
func (m *IDMapper[K]) Key(id int64) (K, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	return key, ok
}
