package stateprovider

import "github.com/moolen/kubetrace/internal/opctx"

// resolveOwner places name beneath its first declared owner when the owner
// already has an attribute. An unknown owner leaves the object to be placed
// at the root; it is never re-parented later.
func (s *Session) resolveOwner(name, ctx string) {
	owner := opctx.FirstOwner(ctx)
	if owner == "" {
		return
	}
	ownerAttr, ok := s.LookupObject(owner)
	if !ok {
		return
	}
	s.PlaceUnder(ownerAttr, name)
}

// groupChildren pre-registers the child announced by a scaling or creation
// event beneath the announcing object, so the child's own events land in the
// right place even when a condition arrives before its first event.
func (s *Session) groupChildren(name string, attr int, reason, message string) {
	child, kind := opctx.ChildName(reason, message)
	if kind == opctx.NoChild {
		return
	}
	s.PlaceUnder(attr, child)
	if kind == opctx.ReplicaSetChild {
		s.replicaSets[name] = child
	}
}
