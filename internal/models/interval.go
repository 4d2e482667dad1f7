package models

// Interval is a half-open time range [Start, End) over which an attribute
// held a constant value. Timestamps are Unix nanoseconds.
type Interval struct {
	Attribute int        `json:"attribute"`
	Start     int64      `json:"start"`
	End       int64      `json:"end"`
	Value     StateValue `json:"value"`
}

// Duration returns the length of the interval in nanoseconds
func (i Interval) Duration() int64 {
	return i.End - i.Start
}

// Contains reports whether t falls inside the interval
func (i Interval) Contains(t int64) bool {
	return t >= i.Start && t < i.End
}

// Intersects reports whether the interval overlaps the closed range [start, end]
func (i Interval) Intersects(start, end int64) bool {
	return i.Start <= end && i.End > start
}
