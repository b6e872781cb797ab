// Package manifest builds the memory-about-memory artifact: community
// detection over the association graph, per-community theme naming,
// temporal classification, and topology metrics, rendered into a bounded
// Markdown report and served from a cache that regenerates in the
// background.
package manifest

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"memengine/internal/clock"
	"memengine/internal/graph"
	"memengine/internal/logging"
	"memengine/internal/summarizer"
)

const (
	louvainResolution = 1.0
	pageRankDamping   = 0.85
	pageRankTolerance = 1e-6
	pageRankMaxIter   = 100
)

// Generator owns the cached manifest and regenerates it on a background
// goroutine, collapsing concurrent triggers via singleflight so only one
// regeneration runs at a time.
type Generator struct {
	clock      clock.Clock
	summarizer summarizer.Summarizer
	epsilon    float64

	ttl               time.Duration
	invalidationCount int64
	topCommunities    int

	cached          atomic.Pointer[Manifest]
	lastGenNowMs    atomic.Int64
	changesSinceGen atomic.Int64
	group           singleflight.Group
}

// Config controls regeneration cadence and output shape.
type Config struct {
	TTL               time.Duration
	InvalidationCount int64
	TopCommunities    int
	Epsilon           float64
}

// New builds a Generator with no cached manifest yet; the first Get call
// starts a background generation and returns a placeholder.
func New(c clock.Clock, s summarizer.Summarizer, cfg Config) *Generator {
	if cfg.TopCommunities <= 0 {
		cfg.TopCommunities = topThemeCount
	}
	return &Generator{
		clock:             c,
		summarizer:        s,
		epsilon:           cfg.Epsilon,
		ttl:               cfg.TTL,
		invalidationCount: cfg.InvalidationCount,
		topCommunities:    cfg.TopCommunities,
	}
}

// NoteChange increments the dirty-item counter that triggers invalidation
// once it crosses InvalidationCount, independent of TTL expiry.
func (g *Generator) NoteChange(n int64) {
	g.changesSinceGen.Add(n)
}

// Get returns the cached manifest if still fresh, otherwise triggers a
// background regeneration from a cloned snapshot and serves the last-good
// manifest (or a placeholder on the very first call) in the meantime. This
// never blocks on the writer queue.
func (g *Generator) Get(ctx context.Context, snapshot *graph.Graph) Manifest {
	cached := g.cached.Load()
	now := g.clock.NowMs()

	stale := cached == nil ||
		(g.ttl > 0 && now-g.lastGenNowMs.Load() > g.ttl.Milliseconds()) ||
		(g.invalidationCount > 0 && g.changesSinceGen.Load() >= g.invalidationCount)

	if stale {
		g.triggerRegeneration(snapshot)
	}

	if cached != nil {
		return *cached
	}
	return Manifest{GeneratedAtMs: now, Markdown: "# Memory Manifest\n\nno data yet\n"}
}

// triggerRegeneration kicks off a background regeneration and returns
// immediately. Concurrent callers collapse onto the single in-flight
// singleflight.Group call rather than each starting their own goroutine.
func (g *Generator) triggerRegeneration(snapshot *graph.Graph) {
	// DoChan schedules the function and returns a channel without blocking
	// this goroutine; we don't wait on it here, only on its one execution
	// being shared by concurrent callers of Get.
	g.group.DoChan("regenerate", func() (interface{}, error) {
		eg, egCtx := errgroup.WithContext(context.Background())
		eg.Go(func() error {
			m, err := g.generate(egCtx, snapshot)
			if err != nil {
				logging.Manifest("regeneration failed, serving last-good manifest: %v", err)
				return nil
			}
			g.cached.Store(&m)
			g.lastGenNowMs.Store(g.clock.NowMs())
			g.changesSinceGen.Store(0)
			return nil
		})
		_ = eg.Wait()
		return nil, nil
	})
}

func (g *Generator) generate(ctx context.Context, snapshot *graph.Graph) (Manifest, error) {
	proj := BuildProjection(snapshot, g.epsilon)
	now := g.clock.NowMs()

	if len(proj.Nodes) == 0 {
		return FormatManifest(now, 0, len(proj.Edges), nil, TopologyMetrics{}, g.topCommunities), nil
	}

	communities := Louvain(proj.Edges, louvainResolution)

	nodeIDs := make([]string, 0, len(proj.Nodes))
	for _, n := range proj.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	pageRank := PageRank(nodeIDs, proj.Edges, pageRankDamping, pageRankTolerance, pageRankMaxIter)

	byCommunity := make(map[string][]ProjectionNode)
	for _, n := range proj.Nodes {
		c := communities[n.ID]
		byCommunity[c] = append(byCommunity[c], n)
	}

	communityIDs := make([]string, 0, len(byCommunity))
	for c := range byCommunity {
		communityIDs = append(communityIDs, c)
	}
	sort.Strings(communityIDs)

	perCommunityData := make(map[string]struct {
		importance float64
		keywords   []string
		preview    string
		temporal   string
	}, len(communityIDs))

	for _, c := range communityIDs {
		members := byCommunity[c]
		importance := 0.0
		for _, m := range members {
			importance += pageRank[m.ID]
		}
		perCommunityData[c] = struct {
			importance float64
			keywords   []string
			preview    string
			temporal   string
		}{
			importance: importance,
			keywords:   TopKeywords(members, 5),
			preview:    mostRecentPreview(members),
			temporal:   ClassifyCommunity(now, members),
		}
	}

	// Only the top-N communities by importance are named by the Summarizer:
	// the batched call is expensive, so the filter must run before we build
	// the batch, not after, while formatting.
	named := topCommunitiesByImportance(communityIDs, perCommunityData, g.topCommunities)

	batch := make([]summarizer.CommunityInput, 0, len(named))
	for _, c := range named {
		batch = append(batch, summarizer.CommunityInput{
			CommunityID: c,
			Keywords:    perCommunityData[c].keywords,
			Previews:    previews(byCommunity[c]),
		})
	}

	names := g.nameThemes(ctx, batch)

	themes := make([]Theme, 0, len(communityIDs))

	for _, c := range communityIDs {
		data := perCommunityData[c]
		name, ok := names[c]
		if !ok {
			// Not among the top communities sent to the Summarizer; these
			// are dropped by FormatManifest's own top-N slicing in the
			// common case, but give them a name anyway in case a caller
			// inspects Manifest.Themes directly.
			name = strings.Join(firstN(data.keywords, 2), " ")
		}
		themes = append(themes, Theme{
			CommunityID:   c,
			Name:          name,
			Importance:    data.importance,
			ItemCount:     len(byCommunity[c]),
			Keywords:      data.keywords,
			RecentPreview: data.preview,
			Temporal:      data.temporal,
		})
	}

	topo := ComputeTopology(proj, communities)
	return FormatManifest(now, len(proj.Nodes), len(proj.Edges), themes, topo, g.topCommunities), nil
}

func (g *Generator) nameThemes(ctx context.Context, batch []summarizer.CommunityInput) map[string]string {
	names := make(map[string]string, len(batch))
	if g.summarizer != nil {
		themes, err := g.summarizer.Summarize(ctx, batch)
		if err == nil {
			for _, t := range themes {
				names[t.CommunityID] = t.ThemeName
			}
		} else {
			logging.Manifest("summarizer failed, using keyword fallback: %v", err)
		}
	}
	if len(names) < len(batch) {
		for _, t := range summarizer.KeywordFallback(batch) {
			if _, ok := names[t.CommunityID]; !ok {
				names[t.CommunityID] = t.ThemeName
			}
		}
	}
	return names
}

const (
	maxPreviewsPerCommunity = 10
	previewCharLimit        = 80
)

// previews picks up to maxPreviewsPerCommunity representative members,
// most-recently-accessed first, and truncates each one's text so a
// community's Summarizer payload stays bounded regardless of how many
// items it actually contains.
func previews(members []ProjectionNode) []string {
	sorted := make([]ProjectionNode, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastAccessedAt > sorted[j].LastAccessedAt
	})
	if len(sorted) > maxPreviewsPerCommunity {
		sorted = sorted[:maxPreviewsPerCommunity]
	}
	out := make([]string, 0, len(sorted))
	for _, m := range sorted {
		out = append(out, truncate(m.Text, previewCharLimit))
	}
	return out
}

func truncate(text string, limit int) string {
	if r := []rune(text); len(r) > limit {
		return string(r[:limit])
	}
	return text
}

// topCommunitiesByImportance returns the topN community ids ranked by
// summed PageRank importance, ties broken by id for determinism. Named
// themes are restricted to this set before the (expensive) Summarizer call
// is issued, not just when the manifest is later rendered.
func topCommunitiesByImportance(ids []string, data map[string]struct {
	importance float64
	keywords   []string
	preview    string
	temporal   string
}, topN int) []string {
	ranked := make([]string, len(ids))
	copy(ranked, ids)
	sort.Slice(ranked, func(i, j int) bool {
		di, dj := data[ranked[i]], data[ranked[j]]
		if di.importance != dj.importance {
			return di.importance > dj.importance
		}
		return ranked[i] < ranked[j]
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func mostRecentPreview(members []ProjectionNode) string {
	if len(members) == 0 {
		return ""
	}
	best := members[0]
	for _, m := range members[1:] {
		if m.LastAccessedAt > best.LastAccessedAt {
			best = m
		}
	}
	return truncate(best.Text, previewCharLimit)
}
