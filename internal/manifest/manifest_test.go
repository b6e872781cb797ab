package manifest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memengine/internal/clock"
	"memengine/internal/graph"
	"memengine/internal/summarizer"
)

const (
	defaultWait = 2 * time.Second
	defaultTick = 10 * time.Millisecond
)

func buildSampleGraph(c *clock.Fixed) *graph.Graph {
	g := graph.New(c, 256, 0.01)
	a, _ := g.CreateItem("fact", "the auth service uses tokens", []string{"auth"}, 0.8, graph.TTL30Days, "")
	b, _ := g.CreateItem("fact", "tokens expire after sessions end", []string{"auth", "sessions"}, 0.7, graph.TTL30Days, "")
	cID, _ := g.CreateItem("fact", "the weather today is sunny", []string{"weather"}, 0.3, graph.TTL7Days, "")
	_ = g.CreateOrReinforceEdge(a, b, ":relates_to", 0.9)
	_ = cID
	return g
}

func TestBuildProjectionSumsMultiRelationWeights(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	g := graph.New(c, 256, 0.01)
	a, _ := g.CreateItem("fact", "alpha", nil, 0.5, graph.TTL30Days, "")
	b, _ := g.CreateItem("fact", "beta", nil, 0.5, graph.TTL30Days, "")
	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":relates_to", 0.5))
	require.NoError(t, g.CreateOrReinforceEdge(a, b, ":co_activated", 0.5))

	proj := BuildProjection(g, 0.01)
	require.Len(t, proj.Edges, 1)
	require.Greater(t, proj.Edges[0].Weight, 0.5)
}

func TestLouvainGroupsConnectedNodesTogether(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	g := buildSampleGraph(c)
	proj := BuildProjection(g, 0.01)
	communities := Louvain(proj.Edges, 1.0)

	var a, b string
	for _, n := range proj.Nodes {
		if n.Text == "the auth service uses tokens" {
			a = n.ID
		}
		if n.Text == "tokens expire after sessions end" {
			b = n.ID
		}
	}
	require.Equal(t, communities[a], communities[b])
}

func TestGeneratorProducesManifestWithThemesAndTopology(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	g := buildSampleGraph(c)

	gen := New(c, nil, Config{TTL: 0, InvalidationCount: 1, TopCommunities: 5, Epsilon: 0.01})
	m := gen.Get(context.Background(), g.Clone())

	require.Eventually(t, func() bool {
		m = gen.Get(context.Background(), g.Clone())
		return len(m.Themes) > 0
	}, defaultWait, defaultTick)

	require.Equal(t, 3, m.ItemCount)
	require.NotEmpty(t, m.Markdown)
	require.Contains(t, m.Markdown, "Themes")
	require.Contains(t, m.Markdown, "Topology")
}

func TestGeneratorServesPlaceholderBeforeFirstGeneration(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	g := graph.New(c, 256, 0.01)
	gen := New(c, nil, Config{TTL: 0, InvalidationCount: 1})
	m := gen.Get(context.Background(), g)
	require.Contains(t, m.Markdown, "no data yet")
}

func TestKeywordFallbackNamesCommunityFromTopKeywords(t *testing.T) {
	members := []ProjectionNode{{ID: "1", Text: "auth tokens", Tags: []string{"auth"}}}
	themes := summarizer.KeywordFallback([]summarizer.CommunityInput{
		{CommunityID: "c1", Keywords: TopKeywords(members, 5)},
	})
	require.NotEmpty(t, themes[0].ThemeName)
}
