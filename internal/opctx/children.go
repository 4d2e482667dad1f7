package opctx

import "strings"

// Reasons that announce a child object in their message
const (
	ReasonScalingReplicaSet = "ScalingReplicaSet"
	ReasonSuccessfulCreate  = "SuccessfulCreate"
)

const (
	scaledUpPrefix = "Scaled up replica set "
	scaledUpSuffix = " to "
	createdPrefix  = "Created pod: "
)

// ChildKind tells which level of the ownership hierarchy a child belongs to
type ChildKind int

const (
	// NoChild means the event does not announce a child
	NoChild ChildKind = iota
	// ReplicaSetChild is announced by a deployment scaling up
	ReplicaSetChild
	// PodChild is announced by a replica set creating a pod
	PodChild
)

// ChildName parses the name of the child object announced by a
// "ScalingReplicaSet" or "SuccessfulCreate" event message.
func ChildName(reason, message string) (string, ChildKind) {
	switch reason {
	case ReasonScalingReplicaSet:
		_, rest, ok := strings.Cut(message, scaledUpPrefix)
		if !ok {
			return "", NoChild
		}
		name, _, _ := strings.Cut(rest, scaledUpSuffix)
		if name == "" {
			return "", NoChild
		}
		return name, ReplicaSetChild
	case ReasonSuccessfulCreate:
		_, name, ok := strings.Cut(message, createdPrefix)
		if !ok || name == "" {
			return "", NoChild
		}
		return name, PodChild
	default:
		return "", NoChild
	}
}
