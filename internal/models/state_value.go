package models

import (
	"cmp"
	"fmt"
)

// ValueKind identifies which variant a StateValue holds
type ValueKind uint8

const (
	// KindAbsent means no state is active
	KindAbsent ValueKind = iota
	// KindLabel is a textual state such as an event reason or condition type
	KindLabel
	// KindEdge is a directed relation between two attributes
	KindEdge
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindLabel:
		return "label"
	case KindEdge:
		return "edge"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// StateValue is the value held by an attribute over an interval.
// The zero value is Absent.
type StateValue struct {
	kind  ValueKind
	label string
	src   int
	dst   int
}

// Absent returns the empty state value
func Absent() StateValue {
	return StateValue{}
}

// Label returns a textual state value
func Label(s string) StateValue {
	return StateValue{kind: KindLabel, label: s}
}

// Edge returns a state value linking a source attribute to a destination attribute
func Edge(src, dst int) StateValue {
	return StateValue{kind: KindEdge, src: src, dst: dst}
}

// Kind returns the variant held by v
func (v StateValue) Kind() ValueKind {
	return v.kind
}

// IsAbsent reports whether v holds no state
func (v StateValue) IsAbsent() bool {
	return v.kind == KindAbsent
}

// LabelValue returns the label and true when v is a label
func (v StateValue) LabelValue() (string, bool) {
	if v.kind != KindLabel {
		return "", false
	}
	return v.label, true
}

// EdgeValue returns the source and destination attributes when v is an edge
func (v StateValue) EdgeValue() (src, dst int, ok bool) {
	if v.kind != KindEdge {
		return 0, 0, false
	}
	return v.src, v.dst, true
}

// Equal reports whether both values hold the same variant and payload
func (v StateValue) Equal(o StateValue) bool {
	return v == o
}

// Compare orders values by kind, then payload. Edges compare by source, then destination.
func (v StateValue) Compare(o StateValue) int {
	if c := cmp.Compare(v.kind, o.kind); c != 0 {
		return c
	}
	switch v.kind {
	case KindLabel:
		return cmp.Compare(v.label, o.label)
	case KindEdge:
		if c := cmp.Compare(v.src, o.src); c != 0 {
			return c
		}
		return cmp.Compare(v.dst, o.dst)
	default:
		return 0
	}
}

// String renders the value for display. Absent renders as an empty string.
func (v StateValue) String() string {
	switch v.kind {
	case KindLabel:
		return v.label
	case KindEdge:
		return fmt.Sprintf("%d->%d", v.src, v.dst)
	default:
		return ""
	}
}

// MarshalText lets state values appear as plain strings in JSON and YAML output
func (v StateValue) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
