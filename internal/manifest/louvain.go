package manifest

import "sort"

// weightedGraph is a symmetric, weighted adjacency representation used for
// Louvain community detection. Self-loops are supported (used when
// aggregating communities into super-nodes across levels).
type weightedGraph struct {
	nodes  []string
	adj    map[string]map[string]float64
	degree map[string]float64 // weighted degree, self-loops counted twice
	m2     float64            // sum of all degrees == 2*totalEdgeWeight
}

func newWeightedGraph() *weightedGraph {
	return &weightedGraph{adj: make(map[string]map[string]float64), degree: make(map[string]float64)}
}

func (g *weightedGraph) addNode(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]float64)
		g.degree[id] = 0
		g.nodes = append(g.nodes, id)
	}
}

func (g *weightedGraph) addEdge(a, b string, w float64) {
	g.addNode(a)
	g.addNode(b)
	if a == b {
		g.adj[a][a] += w
		g.degree[a] += 2 * w
		g.m2 += 2 * w
		return
	}
	g.adj[a][b] += w
	g.adj[b][a] += w
	g.degree[a] += w
	g.degree[b] += w
	g.m2 += 2 * w
}

// Louvain runs multi-level modularity-maximizing community detection over
// an undirected projection and returns a community label per original node
// id. Community labels are opaque strings, not necessarily stable across
// runs.
func Louvain(edges []ProjectionEdge, resolution float64) map[string]string {
	g := newWeightedGraph()
	for _, e := range edges {
		g.addEdge(e.A, e.B, e.Weight)
	}
	if len(g.nodes) == 0 {
		return map[string]string{}
	}

	// originalToCurrent maps an original node id to its current-level super-node id.
	originalToCurrent := make(map[string]string, len(g.nodes))
	for _, n := range g.nodes {
		originalToCurrent[n] = n
	}

	current := g
	for {
		commOf, moved := localMovingPhase(current, resolution)
		if !moved {
			break
		}
		for orig, curID := range originalToCurrent {
			originalToCurrent[orig] = commOf[curID]
		}

		next := aggregate(current, commOf)
		if len(next.nodes) == len(current.nodes) {
			break
		}
		current = next
	}

	return originalToCurrent
}

// localMovingPhase greedily moves nodes between communities to maximize
// modularity gain until no move improves it. Returns the community
// assignment and whether any move happened.
func localMovingPhase(g *weightedGraph, resolution float64) (map[string]string, bool) {
	commOf := make(map[string]string, len(g.nodes))
	commTotalDegree := make(map[string]float64, len(g.nodes))
	for _, n := range g.nodes {
		commOf[n] = n
		commTotalDegree[n] = g.degree[n]
	}

	if g.m2 == 0 {
		return commOf, false
	}

	improvedAny := false
	for pass := 0; pass < 20; pass++ {
		improvedThisPass := false

		order := make([]string, len(g.nodes))
		copy(order, g.nodes)
		sort.Strings(order)

		for _, node := range order {
			currentComm := commOf[node]
			commTotalDegree[currentComm] -= g.degree[node]

			neighborGain := make(map[string]float64)
			for neighbor, w := range g.adj[node] {
				if neighbor == node {
					continue
				}
				neighborGain[commOf[neighbor]] += w
			}

			bestComm := currentComm
			bestGain := neighborGain[currentComm] - resolution*commTotalDegree[currentComm]*g.degree[node]/g.m2

			for comm, kIn := range neighborGain {
				gain := kIn - resolution*commTotalDegree[comm]*g.degree[node]/g.m2
				if gain > bestGain {
					bestGain = gain
					bestComm = comm
				}
			}

			commOf[node] = bestComm
			commTotalDegree[bestComm] += g.degree[node]
			if bestComm != currentComm {
				improvedThisPass = true
				improvedAny = true
			}
		}

		if !improvedThisPass {
			break
		}
	}

	return commOf, improvedAny
}

// aggregate collapses each community in commOf into a single super-node,
// producing the next-level graph. Edge weights between two communities sum;
// internal edges become self-loops.
func aggregate(g *weightedGraph, commOf map[string]string) *weightedGraph {
	// Each undirected pair (a,b) appears twice in g.adj (once from a's side,
	// once from b's), so every weight contribution below is halved.
	interSum := make(map[[2]string]float64)
	selfSum := make(map[string]float64)
	for a, neighbors := range g.adj {
		ca := commOf[a]
		for b, w := range neighbors {
			cb := commOf[b]
			if ca == cb {
				selfSum[ca] += w / 2
				continue
			}
			key := [2]string{ca, cb}
			if ca > cb {
				key = [2]string{cb, ca}
			}
			interSum[key] += w / 2
		}
	}

	next := newWeightedGraph()
	for _, node := range g.nodes {
		next.addNode(commOf[node])
	}
	for c, w := range selfSum {
		if w > 0 {
			next.addEdge(c, c, w)
		}
	}
	for key, w := range interSum {
		next.addEdge(key[0], key[1], w)
	}

	return next
}
