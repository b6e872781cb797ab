package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"memengine/internal/clock"
	"memengine/internal/config"
	"memengine/internal/graph"
	"memengine/internal/policy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, c *clock.Fixed) *Engine {
	cfg := config.DefaultConfig()
	cfg.Store.StateDir = t.TempDir()
	cfg.Store.SnapshotFile = "memory.db"

	e, err := New(cfg, c, policy.NewSexprEvaluator(time.Second), nil)
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	return e
}

func TestRememberThenGetItemMatches(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	e := newTestEngine(t, c)

	id, err := e.Remember("fact", "paris is the capital of france", []string{"geo"}, 0.6, graph.TTL30Days, "")
	require.NoError(t, err)

	item, ok, err := e.GetItem(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "paris is the capital of france", item.Text)
	require.Equal(t, 0.6, item.Importance)
	require.Equal(t, "fact", item.Type)
}

func TestRecallTwoItemAssociationViaEngine(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	e := newTestEngine(t, c)

	a, err := e.Remember("event", "x marks the spot", nil, 0.9, graph.TTL30Days, "")
	require.NoError(t, err)
	b, err := e.Remember("event", "y is nearby", nil, 0.9, graph.TTL30Days, "")
	require.NoError(t, err)
	require.NoError(t, e.Associate(a, b, ":relates_to", 0.8))

	results, err := e.Recall(context.Background(), "x", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, a, results[0].ID)
}

func TestFeedbackAttributesToRecentSessionPolicyVersions(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	e := newTestEngine(t, c)

	a, err := e.Remember("fact", "alpha", nil, 0.5, graph.TTL30Days, "")
	require.NoError(t, err)
	_, err = e.Recall(context.Background(), "alpha", 5)
	require.NoError(t, err)

	require.NoError(t, e.Feedback(a, true))

	versions, err := e.ListPolicyVersions()
	require.NoError(t, err)

	var recallScoreV, decayV *policy.Version
	for _, v := range versions {
		switch v.Name {
		case policy.FuncRecallScore:
			recallScoreV = v
		case policy.FuncDecay:
			decayV = v
		}
	}
	require.NotNil(t, recallScoreV)
	require.NotNil(t, decayV)
	require.EqualValues(t, 1, recallScoreV.Success)
	require.EqualValues(t, 1, decayV.Success)
	require.EqualValues(t, 0, recallScoreV.Fail)
}

func TestDecayBangEvictsExpiredItems(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	e := newTestEngine(t, c)

	a, err := e.Remember("fact", "t", nil, 0.5, graph.TTL7Days, "")
	require.NoError(t, err)

	c.Advance(8 * 24 * time.Hour)

	evicted, err := e.DecayBang(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	_, ok, err := e.GetItem(a)
	require.NoError(t, err)
	require.False(t, ok)

	results, err := e.Recall(context.Background(), "t", 5)
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, a, r.ID)
	}
}

func TestSnapshotAndReloadRoundTrip(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	cfg := config.DefaultConfig()
	cfg.Store.StateDir = t.TempDir()
	cfg.Store.SnapshotFile = "memory.db"

	e, err := New(cfg, c, policy.NewSexprEvaluator(time.Second), nil)
	require.NoError(t, err)

	id, err := e.Remember("fact", "durable fact", []string{"x"}, 0.7, graph.TTL90Days, "")
	require.NoError(t, err)
	before, ok, err := e.GetItem(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, e.Snapshot())
	e.Stop()

	c2 := clock.NewFixed(1_000_500)
	e2, err := New(cfg, c2, policy.NewSexprEvaluator(time.Second), nil)
	require.NoError(t, err)
	t.Cleanup(e2.Stop)

	after, ok, err := e2.GetItem(id)
	require.NoError(t, err)
	require.True(t, ok)

	// P7 (snapshot idempotence): the reloaded item must be structurally
	// identical to the one saved, not merely share a text field.
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("reloaded item differs from pre-snapshot item (-want +got):\n%s", diff)
	}
	require.Equal(t, filepath.Base(cfg.Store.SnapshotFile), "memory.db")
}

func TestConsolidateMergesNearDuplicates(t *testing.T) {
	c := clock.NewFixed(1_000_000)
	e := newTestEngine(t, c)

	a, err := e.Remember("fact", "The Sky Is Blue!", []string{"weather"}, 0.4, graph.TTL30Days, "")
	require.NoError(t, err)
	_, err = e.Remember("fact", "the sky is blue", []string{"color"}, 0.9, graph.TTL30Days, "")
	require.NoError(t, err)

	removed, err := e.Consolidate()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	stats, err := e.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.ItemCount)
	_ = a
}
