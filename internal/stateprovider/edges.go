package stateprovider

import (
	"fmt"
	"strconv"

	"github.com/moolen/kubetrace/internal/models"
)

// EdgesAttribute is the root attribute holding the edge slots
const EdgesAttribute = "Edges"

// EdgeTracker writes directed, time bounded relations between two attributes
// into reusable slots beneath EdgesAttribute.
type EdgeTracker struct {
	session *Session
}

// Edges returns the edge tracker of the session
func (s *Session) Edges() *EdgeTracker {
	return &EdgeTracker{session: s}
}

// Object returns the attribute of a named object, if it has been seen
func (e *EdgeTracker) Object(name string) (int, bool) {
	return e.session.LookupObject(name)
}

// AddArrow records an edge from src to dst valid over [start, end).
// It returns the slot attribute that holds the edge.
func (e *EdgeTracker) AddArrow(start, end int64, src, dst int) (int, error) {
	if end < start {
		return 0, fmt.Errorf("edge %d->%d ends at %d before its start %d", src, dst, end, start)
	}
	slot, err := e.availableSlot(start)
	if err != nil {
		return 0, err
	}
	store := e.session.store
	if err := store.ModifyAttribute(start, models.Edge(src, dst), slot); err != nil {
		return 0, fmt.Errorf("failed to open edge %d->%d: %w", src, dst, err)
	}
	if err := store.ModifyAttribute(end, models.Absent(), slot); err != nil {
		return 0, fmt.Errorf("failed to close edge %d->%d: %w", src, dst, err)
	}
	return slot, nil
}

// availableSlot returns the first slot, in index order, that holds no edge and
// whose last edge closed at or before start. A new slot is allocated when none
// qualifies.
func (e *EdgeTracker) availableSlot(start int64) (int, error) {
	root := e.session.alloc.AcquireRoot(EdgesAttribute)
	store := e.session.store
	slots := store.Children(root)
	for _, slot := range slots {
		value, err := store.QueryOngoing(slot)
		if err != nil {
			return 0, err
		}
		if !value.IsAbsent() {
			continue
		}
		since, err := store.QueryOngoingStart(slot)
		if err != nil {
			return 0, err
		}
		if since <= start {
			return slot, nil
		}
	}
	return e.session.alloc.Acquire(root, strconv.Itoa(len(slots))), nil
}

// ArrowPolicy decides which applied object events produce edges. It is called
// after every state transition; the default analysis has no policy and
// produces no edges.
type ArrowPolicy interface {
	OnObjectEvent(edges *EdgeTracker, ev ObjectEvent) error
}

// ArrowPolicyFunc adapts a function to ArrowPolicy
type ArrowPolicyFunc func(edges *EdgeTracker, ev ObjectEvent) error

// OnObjectEvent implements ArrowPolicy
func (f ArrowPolicyFunc) OnObjectEvent(edges *EdgeTracker, ev ObjectEvent) error {
	return f(edges, ev)
}

// OwnerArrowLength is the duration of the edges drawn by OwnerArrows
const OwnerArrowLength = 10

// OwnerArrows draws a short edge from the owner to the object on every event
// that names a known owner.
var OwnerArrows = ArrowPolicyFunc(func(edges *EdgeTracker, ev ObjectEvent) error {
	if ev.Owner == "" {
		return nil
	}
	owner, ok := edges.Object(ev.Owner)
	if !ok {
		return nil
	}
	_, err := edges.AddArrow(ev.Timestamp, ev.Timestamp+OwnerArrowLength, owner, ev.Attribute)
	return err
})
