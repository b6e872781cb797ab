package activation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memengine/internal/clock"
	"memengine/internal/graph"
	"memengine/internal/policy"
)

func newTestEngine() (*Engine, *graph.Graph, *clock.Fixed) {
	c := clock.NewFixed(1_000_000)
	g := graph.New(c, 256, 0.01)
	p := policy.NewManager(c, policy.NewSexprEvaluator(time.Second), policy.Params{
		HalfLifeDays:        14,
		ActivationSteps:     2,
		ActivationDecay:     0.7,
		ActivationThreshold: 0.01,
		ReinforceDelta:      0.2,
		AttributionWindow:   20,
	})
	return New(g, p, c), g, c
}

func TestRecallTwoItemAssociation(t *testing.T) {
	e, g, _ := newTestEngine()
	a, err := g.CreateItem("event", "x marks the spot", nil, 0.9, graph.TTL30Days, "")
	require.NoError(t, err)
	b, err := g.CreateItem("event", "y is nearby", nil, 0.9, graph.TTL30Days, "")
	require.NoError(t, err)
	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":relates_to", 0.8))

	results, session, err := e.Recall(context.Background(), "x", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, a, results[0].ID)
	require.Equal(t, b, results[1].ID)
	require.Greater(t, results[0].Score, results[1].Score)

	require.ElementsMatch(t, []string{a, b}, session.ReturnedIDs)

	edges := g.Neighbors(a, graph.DirectionOut)
	var coActivated bool
	for _, e := range edges {
		if e.To == b && e.Relation == ":co_activated" {
			coActivated = true
			require.Greater(t, e.Weight, 0.0)
		}
	}
	require.True(t, coActivated)
}

func TestRecallEnergyMonotonicity(t *testing.T) {
	e, g, _ := newTestEngine()
	a, _ := g.CreateItem("fact", "hello world", nil, 0.9, graph.TTL30Days, "")
	before, _ := g.GetItem(a)
	energyBefore := before.Energy

	_, _, err := e.Recall(context.Background(), "hello", 5)
	require.NoError(t, err)

	after, _ := g.GetItem(a)
	require.Greater(t, after.Energy, energyBefore)
}

func TestRecallDeterministicOrdering(t *testing.T) {
	e, g, _ := newTestEngine()
	g.CreateItem("fact", "alpha beta gamma", nil, 0.5, graph.TTL30Days, "")
	g.CreateItem("fact", "alpha delta epsilon", nil, 0.5, graph.TTL30Days, "")

	r1, _, err := e.Recall(context.Background(), "alpha", 5)
	require.NoError(t, err)
	r2, _, err := e.Recall(context.Background(), "alpha", 5)
	require.NoError(t, err)

	require.Equal(t, len(r1), len(r2))
	for i := range r1 {
		require.Equal(t, r1[i].ID, r2[i].ID)
	}
}

func TestRecallEmptyGraphReturnsEmpty(t *testing.T) {
	e, _, _ := newTestEngine()
	results, _, err := e.Recall(context.Background(), "nothing here", 5)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRecallPreviewTruncatedTo80Chars(t *testing.T) {
	e, g, _ := newTestEngine()
	longText := ""
	for i := 0; i < 200; i++ {
		longText += "a"
	}
	g.CreateItem("fact", longText, []string{"needle"}, 0.5, graph.TTL30Days, "")

	results, _, err := e.Recall(context.Background(), "needle", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.LessOrEqual(t, len([]rune(results[0].Preview)), 80)
}
