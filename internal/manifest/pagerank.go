package manifest

import "math"

// PageRank runs the classic power-iteration PageRank over an undirected
// weighted projection (treated as a symmetric graph, so out-weight equals
// in-weight for every node) with the given damping factor, stopping at
// maxIterations or once the L1 change falls below tolerance.
func PageRank(nodes []string, edges []ProjectionEdge, damping float64, tolerance float64, maxIterations int) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}

	adj := make(map[string]map[string]float64, n)
	degree := make(map[string]float64, n)
	for _, id := range nodes {
		adj[id] = make(map[string]float64)
	}
	for _, e := range edges {
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok {
			continue
		}
		adj[e.A][e.B] += e.Weight
		adj[e.B][e.A] += e.Weight
		degree[e.A] += e.Weight
		degree[e.B] += e.Weight
	}

	rank := make(map[string]float64, n)
	for _, id := range nodes {
		rank[id] = 1.0 / float64(n)
	}

	for iter := 0; iter < maxIterations; iter++ {
		next := make(map[string]float64, n)
		danglingSum := 0.0
		for _, id := range nodes {
			if degree[id] == 0 {
				danglingSum += rank[id]
			}
		}
		base := (1-damping)/float64(n) + damping*danglingSum/float64(n)
		for _, id := range nodes {
			next[id] = base
		}
		for _, id := range nodes {
			if degree[id] == 0 {
				continue
			}
			share := damping * rank[id] / degree[id]
			for neighbor, w := range adj[id] {
				next[neighbor] += share * w
			}
		}

		delta := 0.0
		for _, id := range nodes {
			delta += math.Abs(next[id] - rank[id])
		}
		rank = next
		if delta < tolerance {
			break
		}
	}

	return rank
}
