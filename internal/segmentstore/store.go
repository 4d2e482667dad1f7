package segmentstore

import (
	"sync"

	"github.com/moolen/kubetrace/internal/models"
)

// Store receives the segments emitted by the pairing engine
type Store interface {
	Append(seg models.PodStartup) error
	// Segments returns the segments in append order
	Segments() ([]models.PodStartup, error)
	Len() int
	Close() error
}

// MemoryStore keeps segments in memory
type MemoryStore struct {
	mu       sync.RWMutex
	segments []models.PodStartup
	closed   bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store
func (m *MemoryStore) Append(seg models.PodStartup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := seg.Validate(); err != nil {
		return err
	}
	m.segments = append(m.segments, seg)
	return nil
}

// Segments implements Store
func (m *MemoryStore) Segments() ([]models.PodStartup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return append([]models.PodStartup(nil), m.segments...), nil
}

// Len implements Store
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.segments)
}

// Close implements Store
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
