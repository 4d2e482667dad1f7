package dataprovider

import (
	"context"
	"regexp"

	"github.com/moolen/kubetrace/internal/logging"
	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/stateprovider"
	"github.com/moolen/kubetrace/internal/statesystem"
)

// Entry is one line of the time-graph tree
type Entry struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parentId"`
	Name     string `json:"name"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
}

// State is one interval of a row. Label and Style are empty for a gap.
type State struct {
	Start    int64  `json:"start"`
	Duration int64  `json:"duration"`
	Label    string `json:"label,omitempty"`
	Style    string `json:"style,omitempty"`
	Dimmed   bool   `json:"dimmed,omitempty"`
}

// Row holds the states of one entry
type Row struct {
	EntryID int64   `json:"entryId"`
	States  []State `json:"states"`
}

// Arrow is an edge between two entries
type Arrow struct {
	Source      int64 `json:"source"`
	Destination int64 `json:"destination"`
	Start       int64 `json:"start"`
	Duration    int64 `json:"duration"`
}

// SelectionQuery asks for the rows of some entries at a set of times. States
// whose label does not match Search, when set, are dimmed.
type SelectionQuery struct {
	Times  []int64
	Items  []int64
	Search *regexp.Regexp
}

// TimeGraph serves the attribute model of a state analysis
type TimeGraph struct {
	analysis *stateprovider.Analysis
	ids      *IDMapper[int]
	logger   *logging.Logger
}

// NewTimeGraph creates a provider over analysis
func NewTimeGraph(analysis *stateprovider.Analysis) *TimeGraph {
	return &TimeGraph{
		analysis: analysis,
		ids:      NewIDMapper[int](),
		logger:   logging.GetLogger("dataprovider"),
	}
}

// EntryID returns the entry ID of an attribute
func (p *TimeGraph) EntryID(attr int) int64 {
	return p.ids.ID(attr)
}

func (p *TimeGraph) store(ctx context.Context) (*statesystem.Store, string, bool) {
	if !p.analysis.WaitForInitialization(ctx) {
		return nil, MessageInitFailed, false
	}
	store := p.analysis.StateSystem()
	if store == nil {
		return nil, MessageStateSystemFailed, false
	}
	return store, "", true
}

// TimeRange returns the time range covered by the analysis
func (p *TimeGraph) TimeRange(ctx context.Context) (start, end int64, ok bool) {
	store, _, ok := p.store(ctx)
	if !ok {
		return 0, 0, false
	}
	return store.StartTime(), store.CurrentEndTime(), true
}

func (p *TimeGraph) storeFailure(err error) string {
	p.logger.Debug("query failed: %v", err)
	return MessageStateSystemFailed
}

// FetchTree lists the trace root and every object attribute depth first.
// The edge slots are not part of the tree.
func (p *TimeGraph) FetchTree(ctx context.Context) Response[[]Entry] {
	store, msg, ok := p.store(ctx)
	if !ok {
		return failed[[]Entry](msg)
	}
	start, end := store.StartTime(), store.CurrentEndTime()
	rootID := p.ids.ID(statesystem.RootAttribute)
	entries := []Entry{{ID: rootID, ParentID: -1, Name: p.analysis.Name(), Start: start, End: end}}

	var walk func(parent int, parentID int64) error
	walk = func(parent int, parentID int64) error {
		for _, child := range store.Children(parent) {
			if err := ctx.Err(); err != nil {
				return err
			}
			name, err := store.AttributeName(child)
			if err != nil {
				return err
			}
			if parent == statesystem.RootAttribute && name == stateprovider.EdgesAttribute {
				continue
			}
			id := p.ids.ID(child)
			entries = append(entries, Entry{ID: id, ParentID: parentID, Name: name, Start: start, End: end})
			if err := walk(child, id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(statesystem.RootAttribute, rootID); err != nil {
		if ctx.Err() != nil {
			return cancelled[[]Entry]()
		}
		return failed[[]Entry](p.storeFailure(err))
	}
	return completed(entries)
}

// FetchRows returns one row per selected entry with every state intersecting
// the requested times. Unknown entry IDs are ignored.
func (p *TimeGraph) FetchRows(ctx context.Context, q SelectionQuery) Response[[]Row] {
	store, msg, ok := p.store(ctx)
	if !ok {
		return failed[[]Row](msg)
	}

	var attrs []int
	var entryIDs []int64
	for _, id := range q.Items {
		attr, ok := p.ids.Key(id)
		if !ok || attr == statesystem.RootAttribute {
			continue
		}
		attrs = append(attrs, attr)
		entryIDs = append(entryIDs, id)
	}

	intervals, err := store.Query2D(attrs, q.Times)
	if err != nil {
		return failed[[]Row](p.storeFailure(err))
	}
	byAttr := make(map[int][]models.Interval, len(attrs))
	for _, iv := range intervals {
		if ctx.Err() != nil {
			return cancelled[[]Row]()
		}
		byAttr[iv.Attribute] = append(byAttr[iv.Attribute], iv)
	}

	rows := make([]Row, 0, len(attrs))
	for i, attr := range attrs {
		if ctx.Err() != nil {
			return cancelled[[]Row]()
		}
		row := Row{EntryID: entryIDs[i], States: []State{}}
		for _, iv := range byAttr[attr] {
			row.States = append(row.States, toState(iv, q.Search))
		}
		rows = append(rows, row)
	}
	return completed(rows)
}

func toState(iv models.Interval, search *regexp.Regexp) State {
	st := State{Start: iv.Start, Duration: iv.Duration()}
	if iv.Value.IsAbsent() {
		return st
	}
	label := iv.Value.String()
	st.Label = label
	st.Style = StyleFor(label).Name
	if search != nil && !search.MatchString(label) {
		st.Dimmed = true
	}
	return st
}

// FetchArrows returns every edge stored under the edge slots at the requested
// times
func (p *TimeGraph) FetchArrows(ctx context.Context, q TimeQuery) Response[[]Arrow] {
	store, msg, ok := p.store(ctx)
	if !ok {
		return failed[[]Arrow](msg)
	}
	root, ok := store.AttributeID(statesystem.RootAttribute, stateprovider.EdgesAttribute)
	if !ok {
		return completed([]Arrow{})
	}
	intervals, err := store.Query2D(store.Children(root), q.Times)
	if err != nil {
		return failed[[]Arrow](p.storeFailure(err))
	}

	arrows := []Arrow{}
	for _, iv := range intervals {
		if ctx.Err() != nil {
			return cancelled[[]Arrow]()
		}
		src, dst, ok := iv.Value.EdgeValue()
		if !ok {
			continue
		}
		arrows = append(arrows, Arrow{
			Source:      p.ids.ID(src),
			Destination: p.ids.ID(dst),
			Start:       iv.Start,
			Duration:    iv.Duration(),
		})
	}
	return completed(arrows)
}

// FetchStyles returns the style of every category
func (p *TimeGraph) FetchStyles() Response[map[Category]Style] {
	return completed(CategoryStyles())
}
