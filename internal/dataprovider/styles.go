package dataprovider

import "sync"

// Category groups lifecycle states for styling
type Category string

const (
	CategoryUnknown       Category = "unknown"
	CategoryOrchestrating Category = "orchestrating"
	CategoryCreating      Category = "creating"
	CategoryRunning       Category = "running"
	CategoryTerminating   Category = "terminating"
	CategoryError         Category = "error"
)

// StyleGroup is the style group of every category
const StyleGroup = "K8S"

// RGB is a display color
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Style describes how states of one category are drawn
type Style struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Group    string   `json:"group"`
	Color    RGB      `json:"color"`
	Height   float32  `json:"height"`
}

var categoryColors = map[Category]RGB{
	CategoryUnknown:       {100, 100, 100},
	CategoryOrchestrating: {33, 150, 243},
	CategoryCreating:      {0, 150, 136},
	CategoryRunning:       {76, 175, 80},
	CategoryTerminating:   {63, 81, 181},
	CategoryError:         {244, 67, 54},
}

var stateCategories = map[string]Category{
	"ScalingReplicaSet":     CategoryOrchestrating,
	"PodScheduled":          CategoryOrchestrating,
	"SuccessfulCreate":      CategoryOrchestrating,
	"Pulling":               CategoryCreating,
	"Pulled":                CategoryCreating,
	"Created":               CategoryCreating,
	"Started":               CategoryRunning,
	"Killing":               CategoryTerminating,
	"Evicted":               CategoryTerminating,
	"SuccessfulDelete":      CategoryTerminating,
	"BackOff":               CategoryError,
	"Failed":                CategoryError,
	"FailedDaemonPod":       CategoryError,
	"FailedMount":           CategoryError,
	"FreeDiskSpaceFailed":   CategoryError,
	"EvictionThresholdMet":  CategoryError,
	"ExceededGracePeriod":   CategoryError,
	"NodeHasDiskPressure":   CategoryError,
	"NodeHasNoDiskPressure": CategoryError,
}

// CategoryOf returns the category of a state, CategoryUnknown when unmapped
func CategoryOf(state string) Category {
	if c, ok := stateCategories[state]; ok {
		return c
	}
	return CategoryUnknown
}

// styleCache holds the per-state styles computed so far
var styleCache sync.Map

// StyleFor returns the style of a state, named after the state
func StyleFor(state string) Style {
	if s, ok := styleCache.Load(state); ok {
		return s.(Style)
	}
	c := CategoryOf(state)
	s := Style{Name: state, Category: c, Group: StyleGroup, Color: categoryColors[c], Height: 1}
	actual, _ := styleCache.LoadOrStore(state, s)
	return actual.(Style)
}

// CategoryStyles returns the base style of every category
func CategoryStyles() map[Category]Style {
	out := make(map[Category]Style, len(categoryColors))
	for c, color := range categoryColors {
		out[c] = Style{Name: string(c), Category: c, Group: StyleGroup, Color: color, Height: 1}
	}
	return out
}
