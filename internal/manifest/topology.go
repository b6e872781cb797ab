package manifest

// TopologyMetrics summarizes the shape of the projection graph at manifest
// generation time.
type TopologyMetrics struct {
	NodeCount             int
	EdgeCount             int
	Density               float64
	AvgClusteringCoef     float64
	Modularity            float64
	LargestComponentRatio float64
	Bridges               []ProjectionEdge
}

// ComputeTopology derives structural metrics from a projection and the
// community labels Louvain assigned to it.
func ComputeTopology(p Projection, communities map[string]string) TopologyMetrics {
	n := len(p.Nodes)
	m := len(p.Edges)

	metrics := TopologyMetrics{NodeCount: n, EdgeCount: m}
	if n == 0 {
		return metrics
	}

	adj := make(map[string]map[string]float64, n)
	for _, node := range p.Nodes {
		adj[node.ID] = make(map[string]float64)
	}
	for _, e := range p.Edges {
		if _, ok := adj[e.A]; !ok {
			continue
		}
		if _, ok := adj[e.B]; !ok {
			continue
		}
		adj[e.A][e.B] = e.Weight
		adj[e.B][e.A] = e.Weight
	}

	if n > 1 {
		maxEdges := float64(n) * float64(n-1) / 2
		metrics.Density = float64(m) / maxEdges
	}

	metrics.AvgClusteringCoef = averageClusteringCoefficient(adj)
	metrics.Modularity = modularity(adj, communities, float64(m))
	metrics.LargestComponentRatio = largestComponentRatio(adj, n)
	metrics.Bridges = findBridges(p.Nodes, adj, communities)

	return metrics
}

func averageClusteringCoefficient(adj map[string]map[string]float64) float64 {
	if len(adj) == 0 {
		return 0
	}
	total := 0.0
	for node, neighbors := range adj {
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		neighborIDs := make([]string, 0, k)
		for nb := range neighbors {
			neighborIDs = append(neighborIDs, nb)
		}
		for i := 0; i < len(neighborIDs); i++ {
			for j := i + 1; j < len(neighborIDs); j++ {
				if _, ok := adj[neighborIDs[i]][neighborIDs[j]]; ok {
					links++
				}
			}
		}
		possible := float64(k) * float64(k-1) / 2
		total += float64(links) / possible
		_ = node
	}
	return total / float64(len(adj))
}

func modularity(adj map[string]map[string]float64, communities map[string]string, m float64) float64 {
	if m == 0 {
		return 0
	}
	degree := make(map[string]float64, len(adj))
	m2 := 0.0
	for node, neighbors := range adj {
		d := 0.0
		for _, w := range neighbors {
			d += w
		}
		degree[node] = d
		m2 += d
	}
	if m2 == 0 {
		return 0
	}

	q := 0.0
	for a := range adj {
		for b := range adj {
			if communities[a] != communities[b] {
				continue
			}
			q += adj[a][b] - (degree[a]*degree[b])/m2
		}
	}
	return q / m2
}

func largestComponentRatio(adj map[string]map[string]float64, n int) float64 {
	visited := make(map[string]bool, n)
	largest := 0
	for start := range adj {
		if visited[start] {
			continue
		}
		size := 0
		stack := []string{start}
		visited[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			for nb := range adj[cur] {
				if !visited[nb] {
					visited[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		if size > largest {
			largest = size
		}
	}
	return float64(largest) / float64(n)
}

// findBridges runs Tarjan's bridge-finding algorithm in O(V+E) over the
// undirected projection, then keeps only the edges that are also
// community-crossing: a bridge whose endpoints Louvain placed in the same
// community is an intra-community cut-edge, not a structural bridge between
// themes, so it is excluded from the result.
func findBridges(nodes []ProjectionNode, adj map[string]map[string]float64, communities map[string]string) []ProjectionEdge {
	disc := make(map[string]int, len(nodes))
	low := make(map[string]int, len(nodes))
	timer := 0
	var bridges []ProjectionEdge

	var dfs func(u, parent string)
	dfs = func(u, parent string) {
		timer++
		disc[u] = timer
		low[u] = timer
		for v, w := range adj[u] {
			if v == parent {
				continue
			}
			if _, seen := disc[v]; !seen {
				dfs(v, u)
				if low[v] < low[u] {
					low[u] = low[v]
				}
				if low[v] > disc[u] && communities[u] != communities[v] {
					a, b := u, v
					if a > b {
						a, b = b, a
					}
					bridges = append(bridges, ProjectionEdge{A: a, B: b, Weight: w})
				}
			} else if disc[v] < low[u] {
				low[u] = disc[v]
			}
		}
	}

	for _, node := range nodes {
		if _, seen := disc[node.ID]; !seen {
			dfs(node.ID, "")
		}
	}

	return bridges
}
