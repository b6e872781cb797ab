package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"memengine/internal/clock"
)

func newTestGraph() (*Graph, *clock.Fixed) {
	c := clock.NewFixed(1000)
	return New(c, 256, 0.01), c
}

func TestCreateItemAndGetItem(t *testing.T) {
	g, _ := newTestGraph()
	id, err := g.CreateItem("fact", "paris is the capital of france", []string{"geo"}, 0.9, TTL30Days, "")
	require.NoError(t, err)

	item, ok := g.GetItem(id)
	require.True(t, ok)
	require.Equal(t, "fact", item.Type)
	require.Equal(t, "paris is the capital of france", item.Text)
	require.Equal(t, 0.9, item.Importance)
}

func TestCreateItemRejectsEmptyText(t *testing.T) {
	g, _ := newTestGraph()
	_, err := g.CreateItem("fact", "", nil, 0.5, TTL30Days, "")
	require.ErrorIs(t, err, ErrEmptyText)
}

func TestCreateItemClampsImportance(t *testing.T) {
	g, _ := newTestGraph()
	id, err := g.CreateItem("fact", "x", nil, 5.0, TTL30Days, "")
	require.NoError(t, err)
	item, _ := g.GetItem(id)
	require.Equal(t, 1.0, item.Importance)
}

func TestGetItemMissingReturnsFalse(t *testing.T) {
	g, _ := newTestGraph()
	_, ok := g.GetItem("nonexistent")
	require.False(t, ok)
}

func TestMutatorsOnMissingItemFail(t *testing.T) {
	g, _ := newTestGraph()
	require.ErrorIs(t, g.UpdateItemEnergy("nope", 1.0), ErrItemNotFound)
	require.ErrorIs(t, g.RecordAccess("nope", 1), ErrItemNotFound)
	require.ErrorIs(t, g.RemoveItem("nope"), ErrItemNotFound)
}

func TestCreateOrReinforceEdgeDanglingEndpoints(t *testing.T) {
	g, _ := newTestGraph()
	a, _ := g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")
	err := g.CreateOrReinforceEdge(a, "missing", ":relates_to", 0.5)
	require.True(t, errors.Is(err, ErrDanglingEdge))
}

func TestCreateOrReinforceEdgeAsymptoticReinforcement(t *testing.T) {
	g, _ := newTestGraph()
	a, _ := g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")
	b, _ := g.CreateItem("fact", "b", nil, 0.5, TTL30Days, "")

	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":relates_to", 0.5))
	edges := g.Neighbors(a, DirectionOut)
	require.Len(t, edges, 1)
	require.Equal(t, 0.5, edges[0].Weight)

	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":relates_to", 0.5))
	edges = g.Neighbors(a, DirectionOut)
	require.InDelta(t, 0.75, edges[0].Weight, 1e-9)
	require.GreaterOrEqual(t, edges[0].Weight, 0.5) // monotone, never decreases
}

func TestRemoveItemDropsIncidentEdges(t *testing.T) {
	g, _ := newTestGraph()
	a, _ := g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")
	b, _ := g.CreateItem("fact", "b", nil, 0.5, TTL30Days, "")
	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":relates_to", 0.5))

	require.NoError(t, g.RemoveItem(a))
	_, ok := g.GetItem(a)
	require.False(t, ok)
	require.Empty(t, g.Neighbors(b, DirectionIn))
	require.Equal(t, 0, g.EdgeCount())
}

func TestDecayEdgeDropsBelowEpsilon(t *testing.T) {
	g, _ := newTestGraph()
	a, _ := g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")
	b, _ := g.CreateItem("fact", "b", nil, 0.5, TTL30Days, "")
	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":relates_to", 0.02))

	require.NoError(t, g.DecayEdge(a, b, ":relates_to", 0.1))
	require.Empty(t, g.Neighbors(a, DirectionOut))
}

func TestEdgeCapEvictsLowestWeight(t *testing.T) {
	g, _ := newTestGraph()
	g.edgeCap = 2
	a, _ := g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")

	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := g.CreateItem("fact", "n", nil, 0.5, TTL30Days, "")
		ids = append(ids, id)
	}

	require.NoError(t, g.CreateOrReinforceEdge(a, ids[0], ":r", 0.9))
	require.NoError(t, g.CreateOrReinforceEdge(a, ids[1], ":r", 0.5))
	require.NoError(t, g.CreateOrReinforceEdge(a, ids[2], ":r", 0.1))

	edges := g.Neighbors(a, DirectionOut)
	require.Len(t, edges, 2)
	for _, e := range edges {
		require.NotEqual(t, ids[2], e.To)
	}
}

func TestRecordFeedbackNeverDecreases(t *testing.T) {
	g, _ := newTestGraph()
	a, _ := g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")
	require.NoError(t, g.RecordFeedback(a, true))
	require.NoError(t, g.RecordFeedback(a, true))
	require.NoError(t, g.RecordFeedback(a, false))

	item, _ := g.GetItem(a)
	require.Equal(t, int64(2), item.Success)
	require.Equal(t, int64(1), item.Fail)
}

func TestIterItemsIsSortedAndFiltered(t *testing.T) {
	g, _ := newTestGraph()
	g.CreateItem("fact", "a", nil, 0.5, TTL30Days, "")
	g.CreateItem("plan", "b", nil, 0.5, TTL30Days, "")

	facts := g.IterItems(func(m *MemoryItem) bool { return m.Type == "fact" })
	require.Len(t, facts, 1)

	all := g.IterItems(nil)
	require.Len(t, all, 2)
	require.True(t, all[0].ID <= all[1].ID)
}
