package stateprovider

import (
	"errors"
	"fmt"

	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/opctx"
	"github.com/moolen/kubetrace/internal/trace"
)

// ErrMissingName is returned for an object event whose context has no Name.
// Such events cannot be attributed and are dropped.
var ErrMissingName = errors.New("event has no object name")

// ObjectEvent is a lifecycle transition that was applied to the store
type ObjectEvent struct {
	Timestamp int64
	Op        string
	Name      string
	UID       string
	Owner     string
	Attribute int
	Value     models.StateValue
}

// Provider applies Kubernetes trace events to a session
type Provider struct {
	session *Session
	policy  ArrowPolicy
	logger  *logging.Logger
}

// NewProvider creates a provider writing into session. policy may be nil.
func NewProvider(session *Session, policy ArrowPolicy) *Provider {
	return &Provider{
		session: session,
		policy:  policy,
		logger:  logging.GetLogger("stateprovider").WithField("run", session.ID()),
	}
}

// Handle applies one event. Events other than Kubernetes object events and
// unknown operations are ignored. A malformed event returns an error wrapping
// trace.ErrMalformedEvent; an event without a name returns ErrMissingName; a
// modification back in time returns the store error. In every case the
// session stays consistent and the next event can be handled.
func (p *Provider) Handle(ev trace.Event) error {
	if ev.Name() != trace.KubernetesEvent {
		return nil
	}
	opName, ok := ev.Field(trace.FieldOperationName)
	if !ok {
		return fmt.Errorf("%w: no %s", trace.ErrMalformedEvent, trace.FieldOperationName)
	}
	ctx, ok := ev.Field(trace.FieldOperationContext)
	if !ok {
		return fmt.Errorf("%w: no %s", trace.ErrMalformedEvent, trace.FieldOperationContext)
	}
	name := opctx.Field(ctx, opctx.KeyName)
	if name == "" {
		return ErrMissingName
	}

	ts := ev.Timestamp()
	switch opName {
	case trace.OpEvent:
		return p.handleEvent(ts, name, ctx)
	case trace.OpTerminated:
		return p.apply(ts, trace.OpTerminated, name, "", models.Absent())
	case trace.OpCondition:
		// Conditions can precede the object's first event.
		return p.apply(ts, trace.OpCondition, name, "", models.Label(opctx.Field(ctx, opctx.KeyType)))
	default:
		return nil
	}
}

func (p *Provider) handleEvent(ts int64, name, ctx string) error {
	s := p.session
	uid := opctx.Field(ctx, opctx.KeyUID)
	s.RecordUID(name, uid)
	reason := opctx.Field(ctx, opctx.KeyReason)

	owner := opctx.FirstOwner(ctx)
	s.resolveOwner(name, ctx)

	if err := p.apply(ts, trace.OpEvent, name, owner, models.Label(reason)); err != nil {
		return err
	}
	s.groupChildren(name, s.Object(name), reason, opctx.Field(ctx, opctx.KeyMessage))
	return nil
}

func (p *Provider) apply(ts int64, op, name, owner string, value models.StateValue) error {
	s := p.session
	attr := s.Object(name)
	if err := s.store.ModifyAttribute(ts, value, attr); err != nil {
		return fmt.Errorf("%s %q at %d: %w", op, name, ts, err)
	}
	if p.policy == nil {
		return nil
	}
	uid, _ := s.UID(name)
	ev := ObjectEvent{
		Timestamp: ts,
		Op:        op,
		Name:      name,
		UID:       uid,
		Owner:     owner,
		Attribute: attr,
		Value:     value,
	}
	if err := p.policy.OnObjectEvent(s.Edges(), ev); err != nil {
		p.logger.WarnWithFields("arrow policy failed",
			logging.Field("object", name),
			logging.Field("error", err.Error()))
	}
	return nil
}
