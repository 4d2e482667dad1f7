// Package latency pairs the "Pulling" and "Started" events of each object UID
// into pod startup segments and summarizes their durations.
package latency

import (
	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/opctx"
	"github.com/moolen/kubetrace/internal/trace"
)

// Reasons that open and close a startup
const (
	ReasonPulling = "Pulling"
	ReasonStarted = "Started"
)

// Pairing matches startup events by UID. It holds one pending start per UID;
// a later Pulling for the same UID replaces it.
type Pairing struct {
	pending map[string]models.InitialInfo
}

// NewPairing creates an empty pairing engine
func NewPairing() *Pairing {
	return &Pairing{pending: make(map[string]models.InitialInfo)}
}

// Handle consumes one event and returns the segment it completes, if any.
// Events without a UID, and Started events without a pending start, are
// ignored.
func (p *Pairing) Handle(ev trace.Event) (models.PodStartup, bool) {
	if ev.Name() != trace.KubernetesEvent {
		return models.PodStartup{}, false
	}
	op, ok := ev.Field(trace.FieldOperationName)
	if !ok || op != trace.OpEvent {
		return models.PodStartup{}, false
	}
	ctx, ok := ev.Field(trace.FieldOperationContext)
	if !ok {
		return models.PodStartup{}, false
	}

	switch opctx.Field(ctx, opctx.KeyReason) {
	case ReasonPulling:
		uid := opctx.Field(ctx, opctx.KeyUID)
		if uid == "" {
			return models.PodStartup{}, false
		}
		p.pending[uid] = models.InitialInfo{
			StartTime: ev.Timestamp(),
			Name:      opctx.Field(ctx, opctx.KeyName),
			UID:       uid,
		}
	case ReasonStarted:
		uid := opctx.Field(ctx, opctx.KeyUID)
		info, ok := p.pending[uid]
		if uid == "" || !ok {
			return models.PodStartup{}, false
		}
		delete(p.pending, uid)
		return models.NewPodStartup(info, ev.Timestamp()), true
	}
	return models.PodStartup{}, false
}

// Pending returns the number of starts still waiting for their end
func (p *Pairing) Pending() int {
	return len(p.pending)
}

// Reset discards every pending start without emitting anything
func (p *Pairing) Reset() {
	clear(p.pending)
}
