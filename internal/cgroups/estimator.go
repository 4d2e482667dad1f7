package cgroups

import (
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// DefaultSamplingRate is the number of events between two estimates
const DefaultSamplingRate = 10000

// Estimate is a progress checkpoint of a pass
type Estimate struct {
	SubTrace  string        `json:"subtrace"`
	Completed int64         `json:"completed"`
	Total     int64         `json:"total"`
	Remaining time.Duration `json:"remaining"`
}

// Message renders the estimate for progress output
func (e Estimate) Message() string {
	minutes := int64(e.Remaining / time.Minute)
	seconds := int64(e.Remaining/time.Second) % 60
	return fmt.Sprintf("Estimated time left: %d minutes, %d seconds", minutes, seconds)
}

// Estimator projects the remaining time of a pass from the average cost of the
// events of the last sampling window. It only reports; a clock going backwards
// or a bogus total yields a zero estimate, never an error.
type Estimator struct {
	clock     clock.PassiveClock
	subTrace  string
	total     int64
	sampling  int64
	completed int64
	last      time.Time
}

// NewEstimator starts estimating a pass of total events
func NewEstimator(c clock.PassiveClock, subTrace string, total int64, sampling int) *Estimator {
	if sampling <= 0 {
		sampling = DefaultSamplingRate
	}
	return &Estimator{
		clock:    c,
		subTrace: subTrace,
		total:    total,
		sampling: int64(sampling),
		last:     c.Now(),
	}
}

// Tick counts one completed event. Every sampling events it returns a fresh
// estimate and true.
func (e *Estimator) Tick() (Estimate, bool) {
	e.completed++
	if e.completed%e.sampling != 0 {
		return Estimate{}, false
	}
	now := e.clock.Now()
	elapsed := now.Sub(e.last)
	e.last = now
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := e.total - e.completed
	if remaining < 0 {
		remaining = 0
	}
	perEvent := float64(elapsed) / float64(e.sampling)
	return Estimate{
		SubTrace:  e.subTrace,
		Completed: e.completed,
		Total:     e.total,
		Remaining: time.Duration(perEvent * float64(remaining)),
	}, true
}

// Completed returns the number of events counted so far
func (e *Estimator) Completed() int64 {
	return e.completed
}
