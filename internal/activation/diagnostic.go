package activation

import "memengine/internal/graph"

// ActivateDiagnostic runs a raw activation propagation from the given seed
// ids with explicit steps/decay/threshold, performing no write-back. It is
// the diagnostic `activate` operation: useful for inspecting how activation
// would spread without mutating energy, access counts, or edges.
func (e *Engine) ActivateDiagnostic(seedIDs []string, steps int, decayFactor, threshold float64) map[string]float64 {
	activation := make(map[string]float64, len(seedIDs))
	for _, id := range seedIDs {
		if item, ok := e.graph.GetItem(id); ok {
			activation[id] = item.Importance
		}
	}

	frontier := make(map[string]float64, len(activation))
	for id, a := range activation {
		frontier[id] = a
	}
	for step := 0; step < steps; step++ {
		next := make(map[string]float64, len(activation))
		for id, a := range activation {
			next[id] += a
		}
		wave := make(map[string]float64)
		for id, a := range frontier {
			if a <= threshold {
				continue
			}
			for _, edge := range e.graph.Neighbors(id, graph.DirectionOut) {
				next[edge.To] += a * edge.Weight * decayFactor
				wave[edge.To] += a * edge.Weight * decayFactor
			}
		}
		activation = next
		frontier = wave
	}

	return activation
}
