package latency

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/moolen/kubetrace/internal/models"
)

// Aspect names a way of ordering segments
type Aspect string

const (
	AspectName     Aspect = "name"
	AspectUID      Aspect = "uid"
	AspectStart    Aspect = "start"
	AspectDuration Aspect = "duration"
)

// ParseAspect returns the aspect named s; an empty s means AspectStart
func ParseAspect(s string) (Aspect, error) {
	switch a := Aspect(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AspectStart, nil
	case AspectName, AspectUID, AspectStart, AspectDuration:
		return a, nil
	default:
		return "", fmt.Errorf("unknown sort aspect %q (want name, uid, start or duration)", s)
	}
}

// Compare orders two segments by the aspect. Name and UID compare case
// insensitively; every aspect falls back to start then end.
func (a Aspect) Compare(x, y models.PodStartup) int {
	var c int
	switch a {
	case AspectName:
		c = strings.Compare(strings.ToLower(x.Name()), strings.ToLower(y.Name()))
	case AspectUID:
		c = strings.Compare(strings.ToLower(x.UID()), strings.ToLower(y.UID()))
	case AspectDuration:
		c = cmp.Compare(x.Length(), y.Length())
	}
	if c != 0 {
		return c
	}
	if c = cmp.Compare(x.Start(), y.Start()); c != 0 {
		return c
	}
	return cmp.Compare(x.End(), y.End())
}

// Resolve returns the value of the aspect for seg as text
func (a Aspect) Resolve(seg models.PodStartup) string {
	switch a {
	case AspectName:
		return seg.Name()
	case AspectUID:
		return seg.UID()
	case AspectDuration:
		return fmt.Sprintf("%d", seg.Length())
	default:
		return fmt.Sprintf("%d", seg.Start())
	}
}

// Sort orders segs in place by the aspect
func Sort(segs []models.PodStartup, a Aspect) {
	slices.SortStableFunc(segs, a.Compare)
}
