package manifest

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxManifestChars = 8000
	topThemeCount    = 5
)

// Theme is one community's rendered summary, ready for Markdown output.
type Theme struct {
	CommunityID   string
	Name          string
	Importance    float64
	ItemCount     int
	Keywords      []string
	RecentPreview string
	Temporal      string
}

// Manifest is the complete memory-about-memory artifact served to callers.
type Manifest struct {
	GeneratedAtMs int64
	ItemCount     int
	EdgeCount     int
	Themes        []Theme
	Topology      TopologyMetrics
	Markdown      string
}

// FormatManifest renders themes and topology into the bounded Markdown
// report. Themes are ranked by importance and truncated first when the
// overall size budget is exceeded, before any single field is trimmed.
func FormatManifest(generatedAtMs int64, itemCount, edgeCount int, themes []Theme, topo TopologyMetrics, maxThemes int) Manifest {
	if maxThemes <= 0 {
		maxThemes = topThemeCount
	}
	sorted := make([]Theme, len(themes))
	copy(sorted, themes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Importance != sorted[j].Importance {
			return sorted[i].Importance > sorted[j].Importance
		}
		return sorted[i].CommunityID < sorted[j].CommunityID
	})

	top := sorted
	if len(top) > maxThemes {
		top = top[:maxThemes]
	}

	md := renderMarkdown(itemCount, edgeCount, top, topo)
	for len(md) > maxManifestChars && len(top) > 1 {
		top = top[:len(top)-1]
		md = renderMarkdown(itemCount, edgeCount, top, topo)
	}
	if len(md) > maxManifestChars {
		md = md[:maxManifestChars]
	}

	return Manifest{
		GeneratedAtMs: generatedAtMs,
		ItemCount:     itemCount,
		EdgeCount:     edgeCount,
		Themes:        top,
		Topology:      topo,
		Markdown:      md,
	}
}

func renderMarkdown(itemCount, edgeCount int, themes []Theme, topo TopologyMetrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Memory Manifest\n\n")
	fmt.Fprintf(&b, "%d items, %d associations.\n\n", itemCount, edgeCount)

	fmt.Fprintf(&b, "## Themes\n\n")
	for _, t := range themes {
		fmt.Fprintf(&b, "- **%s** (importance %.2f, %d items, %s) — %s\n",
			t.Name, t.Importance, t.ItemCount, t.Temporal, strings.Join(t.Keywords, ", "))
		if t.RecentPreview != "" {
			fmt.Fprintf(&b, "  recent: %q\n", t.RecentPreview)
		}
	}

	fmt.Fprintf(&b, "\n## Topology\n\n")
	fmt.Fprintf(&b, "%d nodes, %d edges, density %.4f, avg clustering %.4f, modularity %.4f, largest component %.2f%%, %d bridges\n",
		topo.NodeCount, topo.EdgeCount, topo.Density, topo.AvgClusteringCoef,
		topo.Modularity, topo.LargestComponentRatio*100, len(topo.Bridges))

	return b.String()
}
