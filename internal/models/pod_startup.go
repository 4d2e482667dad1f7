package models

import (
	"fmt"
	"time"
)

// InitialInfo is what is known about a pod startup when its image pull begins
type InitialInfo struct {
	StartTime int64
	Name      string
	UID       string
}

// MaxFieldLength bounds the byte length of a startup's name and UID
const MaxFieldLength = 1 << 16

// PodStartup is an immutable record of one pod startup, from the "Pulling"
// event to the matching "Started" event of the same object UID.
type PodStartup struct {
	start int64
	end   int64
	name  string
	uid   string
}

// NewPodStartup completes a pending startup with its end time
func NewPodStartup(info InitialInfo, endTime int64) PodStartup {
	return PodStartup{start: info.StartTime, end: endTime, name: info.Name, uid: info.UID}
}

// RestorePodStartup rebuilds a segment from its persisted fields
func RestorePodStartup(start, end int64, name, uid string) PodStartup {
	return PodStartup{start: start, end: end, name: name, uid: uid}
}

// Validate checks that the segment does not end before it starts and that
// its name and UID fit MaxFieldLength
func (p PodStartup) Validate() error {
	if p.end < p.start {
		return newValidationError("pod startup", "%q ends at %d before its start %d", p.name, p.end, p.start)
	}
	if len(p.name) > MaxFieldLength || len(p.uid) > MaxFieldLength {
		return newValidationError("pod startup", "name or uid longer than %d bytes", MaxFieldLength)
	}
	return nil
}

// Start returns the time of the "Pulling" event
func (p PodStartup) Start() int64 { return p.start }

// End returns the time of the "Started" event
func (p PodStartup) End() int64 { return p.end }

// Name returns the pod name
func (p PodStartup) Name() string { return p.name }

// UID returns the object UID shared by both events
func (p PodStartup) UID() string { return p.uid }

// Length returns the startup latency in nanoseconds
func (p PodStartup) Length() int64 { return p.end - p.start }

// Latency returns the startup latency as a duration
func (p PodStartup) Latency() time.Duration { return time.Duration(p.Length()) }

func (p PodStartup) String() string {
	return fmt.Sprintf("Start Time = %d; End Time = %d; Duration = %d; Name = %s; UID = %s",
		p.start, p.end, p.Length(), p.name, p.uid)
}

// PodStartupView is the serializable form of a PodStartup
type PodStartupView struct {
	Start    int64  `json:"start" yaml:"start"`
	End      int64  `json:"end" yaml:"end"`
	Duration int64  `json:"duration" yaml:"duration"`
	Name     string `json:"name" yaml:"name"`
	UID      string `json:"uid" yaml:"uid"`
}

// View returns the serializable form of p
func (p PodStartup) View() PodStartupView {
	return PodStartupView{Start: p.start, End: p.end, Duration: p.Length(), Name: p.name, UID: p.uid}
}
