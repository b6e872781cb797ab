package engine

import "memengine/internal/store"

// exportState assembles the full persistable State from the engine's
// current in-memory components. Must only be called from inside the writer
// queue.
func (e *Engine) exportState() *store.State {
	versions, active, params := e.policy.Export()

	return &store.State{
		FormatVersion:  store.FormatVersion,
		ID:             e.id,
		Born:           e.born,
		Items:          e.graph.IterItems(nil),
		Edges:          e.graph.AllEdges(),
		PolicyVersions: versions,
		ActivePolicy:   active,
		PolicyParams:   params,
		RecentSessions: e.sessions,
		History:        e.history,
	}
}
