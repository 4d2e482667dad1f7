package stateprovider

import (
	"testing"

	"github.com/moolen/kubetrace/internal/models"
	"github.com/moolen/kubetrace/internal/statesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddArrowReusesFirstFreeSlot(t *testing.T) {
	s, err := NewSession(statesystem.New(), 16)
	require.NoError(t, err)
	store := s.Store()
	store.UpdateEndTime(0)
	a := s.Object("a")
	b := s.Object("b")
	c := s.Object("c")
	edges := s.Edges()

	slot0, err := edges.AddArrow(10, 20, a, b)
	require.NoError(t, err)
	// Overlaps the first edge: needs a second slot.
	slot1, err := edges.AddArrow(15, 30, b, c)
	require.NoError(t, err)
	assert.NotEqual(t, slot0, slot1)
	// Starts after the first slot closed: first-fit picks slot 0 again.
	again, err := edges.AddArrow(25, 40, a, c)
	require.NoError(t, err)
	assert.Equal(t, slot0, again)

	root, ok := s.Allocator().Lookup(statesystem.RootAttribute, EdgesAttribute)
	require.True(t, ok)
	assert.Equal(t, []int{slot0, slot1}, store.Children(root))
	name, err := store.AttributeName(slot1)
	require.NoError(t, err)
	assert.Equal(t, "1", name)

	ivs, err := store.QueryRange(slot0, 0, 50)
	require.NoError(t, err)
	var values []models.StateValue
	for _, iv := range ivs {
		values = append(values, iv.Value)
	}
	assert.Equal(t, []models.StateValue{
		models.Absent(), models.Edge(a, b), models.Absent(), models.Edge(a, c), models.Absent(),
	}, values)
}

func TestAddArrowRejectsInvertedRange(t *testing.T) {
	s, err := NewSession(statesystem.New(), 16)
	require.NoError(t, err)
	_, err = s.Edges().AddArrow(20, 10, 0, 1)
	assert.Error(t, err)
}

func TestOwnerArrows(t *testing.T) {
	s, err := NewSession(statesystem.New(), 16)
	require.NoError(t, err)
	s.Store().UpdateEndTime(0)
	rs := s.Object("rs")
	pod := s.Object("pod-a")
	edges := s.Edges()

	require.NoError(t, OwnerArrows.OnObjectEvent(edges, ObjectEvent{Timestamp: 5, Name: "pod-a", Attribute: pod}))
	require.NoError(t, OwnerArrows.OnObjectEvent(edges, ObjectEvent{Timestamp: 5, Name: "pod-a", Owner: "unknown", Attribute: pod}))
	_, ok := s.Allocator().Lookup(statesystem.RootAttribute, EdgesAttribute)
	assert.False(t, ok, "no edge without a known owner")

	require.NoError(t, OwnerArrows.OnObjectEvent(edges, ObjectEvent{Timestamp: 5, Name: "pod-a", Owner: "rs", Attribute: pod}))
	root, ok := s.Allocator().Lookup(statesystem.RootAttribute, EdgesAttribute)
	require.True(t, ok)
	slots := s.Store().Children(root)
	require.Len(t, slots, 1)
	ivs, err := s.Store().QueryRange(slots[0], 0, 20)
	require.NoError(t, err)
	var values []models.StateValue
	for _, iv := range ivs {
		values = append(values, iv.Value)
	}
	assert.Contains(t, values, models.Edge(rs, pod))
}
