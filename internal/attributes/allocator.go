// Package attributes allocates stable attribute identifiers for names in the
// hierarchical namespace of a statesystem.Store.
package attributes

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/moolen/kubetrace/internal/statesystem"
)

// DefaultCacheSize is used when the configured cache size is not positive
const DefaultCacheSize = 4096

type key struct {
	parent int
	name   string
}

// Allocator maps (parent, name) pairs to attribute identifiers. Lookups are
// served from an LRU cache in front of the store; a miss falls through to the
// store, which allocates on first use. Evicting an entry never changes the
// identifier because the store keeps the authoritative mapping.
//
// An Allocator is used by a single ingestion pass and does no locking of its own.
type Allocator struct {
	store *statesystem.Store
	cache *lru.Cache[key, int]

	hits   uint64
	misses uint64
}

// Stats reports cache effectiveness
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// New creates an allocator over store with room for size cached names
func New(store *statesystem.Store, size int) (*Allocator, error) {
	if store == nil {
		return nil, fmt.Errorf("attribute allocator needs a store")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[key, int](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create attribute cache: %w", err)
	}
	return &Allocator{store: store, cache: cache}, nil
}

// Acquire returns the identifier of name under parent, allocating it on first use
func (a *Allocator) Acquire(parent int, name string) int {
	k := key{parent: parent, name: name}
	if id, ok := a.cache.Get(k); ok {
		atomic.AddUint64(&a.hits, 1)
		return id
	}
	atomic.AddUint64(&a.misses, 1)
	id := a.store.AcquireAttribute(parent, name)
	a.cache.Add(k, id)
	return id
}

// AcquireRoot is Acquire under the root attribute
func (a *Allocator) AcquireRoot(name string) int {
	return a.Acquire(statesystem.RootAttribute, name)
}

// Lookup returns the identifier of name under parent without allocating
func (a *Allocator) Lookup(parent int, name string) (int, bool) {
	if id, ok := a.cache.Peek(key{parent: parent, name: name}); ok {
		return id, true
	}
	return a.store.AttributeID(parent, name)
}

// Store returns the underlying interval store
func (a *Allocator) Store() *statesystem.Store {
	return a.store
}

// Stats returns the cache counters
func (a *Allocator) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&a.hits),
		Misses: atomic.LoadUint64(&a.misses),
		Size:   a.cache.Len(),
	}
}
