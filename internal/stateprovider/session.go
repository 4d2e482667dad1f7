// Package stateprovider turns the Kubernetes event stream into the attribute
// model of a statesystem.Store: one attribute per object, nested under its
// owner when the owner is known, holding the object's lifecycle state.
package stateprovider

import (
	"github.com/google/uuid"
	"github.com/moolen/kubetrace/internal/attributes"
	"github.com/moolen/kubetrace/internal/statesystem"
)

// Session is the state of one ingestion pass. It is created when a pass
// starts and owned by that pass only; nothing in it is safe for concurrent
// writers.
type Session struct {
	id    string
	alloc *attributes.Allocator
	store *statesystem.Store

	// objects maps an object name to its attribute wherever it was placed
	objects map[string]int

	podUIDs  map[string]string // name -> uid
	podNames map[string]string // uid -> name

	replicaSets map[string]string // deployment -> latest replica set
}

// NewSession starts a session writing to store
func NewSession(store *statesystem.Store, cacheSize int) (*Session, error) {
	alloc, err := attributes.New(store, cacheSize)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:          uuid.NewString(),
		alloc:       alloc,
		store:       store,
		objects:     make(map[string]int),
		podUIDs:     make(map[string]string),
		podNames:    make(map[string]string),
		replicaSets: make(map[string]string),
	}, nil
}

// ID identifies the run in logs and spans
func (s *Session) ID() string {
	return s.id
}

// Store returns the interval store written by the session
func (s *Session) Store() *statesystem.Store {
	return s.store
}

// Allocator returns the attribute allocator of the session
func (s *Session) Allocator() *attributes.Allocator {
	return s.alloc
}

// Object returns the attribute of name, placing it at the root on first use
func (s *Session) Object(name string) int {
	if attr, ok := s.objects[name]; ok {
		return attr
	}
	attr := s.alloc.AcquireRoot(name)
	s.objects[name] = attr
	return attr
}

// LookupObject returns the attribute of name if the object was seen or announced
func (s *Session) LookupObject(name string) (int, bool) {
	attr, ok := s.objects[name]
	return attr, ok
}

// PlaceUnder registers name beneath parent unless the object already has an
// attribute. It returns the object's attribute either way.
func (s *Session) PlaceUnder(parent int, name string) int {
	if attr, ok := s.objects[name]; ok {
		return attr
	}
	attr := s.alloc.Acquire(parent, name)
	s.objects[name] = attr
	return attr
}

// RecordUID associates name with uid, replacing any previous association of
// either side. Empty UIDs are ignored.
func (s *Session) RecordUID(name, uid string) {
	if uid == "" {
		return
	}
	if old, ok := s.podUIDs[name]; ok && old != uid {
		delete(s.podNames, old)
	}
	if old, ok := s.podNames[uid]; ok && old != name {
		delete(s.podUIDs, old)
	}
	s.podUIDs[name] = uid
	s.podNames[uid] = name
}

// UID returns the UID last recorded for name
func (s *Session) UID(name string) (string, bool) {
	uid, ok := s.podUIDs[name]
	return uid, ok
}

// NameForUID returns the object name last recorded for uid
func (s *Session) NameForUID(uid string) (string, bool) {
	name, ok := s.podNames[uid]
	return name, ok
}

// ReplicaSet returns the replica set a deployment last scaled up
func (s *Session) ReplicaSet(deployment string) (string, bool) {
	rs, ok := s.replicaSets[deployment]
	return rs, ok
}

// PodNames returns a copy of the uid -> name associations
func (s *Session) PodNames() map[string]string {
	out := make(map[string]string, len(s.podNames))
	for uid, name := range s.podNames {
		out[uid] = name
	}
	return out
}
