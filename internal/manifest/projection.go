package manifest

import "memengine/internal/graph"

// ProjectionEdge is an undirected edge in the community-detection
// projection: weight > epsilon edges from the graph, directionality
// discarded.
type ProjectionEdge struct {
	A, B   string
	Weight float64
}

// ProjectionNode is a snapshot of one item, detached from the live graph so
// manifest generation never touches State directly.
type ProjectionNode struct {
	ID             string
	Type           string
	Text           string
	Tags           []string
	Importance     float64
	CreatedAt      int64
	LastAccessedAt int64
}

// Projection is the cloned snapshot the manifest generator operates on.
type Projection struct {
	Nodes []ProjectionNode
	Edges []ProjectionEdge
}

// BuildProjection clones the graph's nodes and edges (weight > epsilon) into
// an undirected projection, suitable for background processing without
// holding the writer queue.
func BuildProjection(g *graph.Graph, epsilon float64) Projection {
	items := g.IterItems(nil)
	nodes := make([]ProjectionNode, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, ProjectionNode{
			ID:             item.ID,
			Type:           item.Type,
			Text:           item.Text,
			Tags:           item.TagSlice(),
			Importance:     item.Importance,
			CreatedAt:      item.CreatedAt,
			LastAccessedAt: item.LastAccessedAt,
		})
	}

	weightByPair := make(map[[2]string]float64)
	for _, e := range g.AllEdges() {
		if e.Weight <= epsilon {
			continue
		}
		a, b := e.From, e.To
		if a > b {
			a, b = b, a
		}
		weightByPair[[2]string{a, b}] += e.Weight
	}

	edges := make([]ProjectionEdge, 0, len(weightByPair))
	for key, w := range weightByPair {
		edges = append(edges, ProjectionEdge{A: key[0], B: key[1], Weight: w})
	}

	return Projection{Nodes: nodes, Edges: edges}
}
