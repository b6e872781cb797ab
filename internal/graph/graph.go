package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"memengine/internal/clock"
	"memengine/internal/logging"
)

// Graph is the in-memory arena of items and edges. It never stores raw
// cross-references between items — all relations are (relation + id lookup)
// so that removing an item and its incident edges is a single operation.
//
// Graph is not safe for concurrent use; callers (the engine's writer queue)
// serialize access.
type Graph struct {
	clock clock.Clock

	items map[string]*MemoryItem
	edges map[EdgeKey]*MemoryEdge

	// out/in index edges by endpoint for Neighbors without a full scan.
	out map[string]map[EdgeKey]struct{}
	in  map[string]map[EdgeKey]struct{}

	edgeCap     int
	edgeEpsilon float64
}

// New returns an empty Graph using the given clock for timestamps.
func New(c clock.Clock, edgeCap int, edgeEpsilon float64) *Graph {
	if edgeCap <= 0 {
		edgeCap = 256
	}
	if edgeEpsilon <= 0 {
		edgeEpsilon = 0.01
	}
	return &Graph{
		clock:       c,
		items:       make(map[string]*MemoryItem),
		edges:       make(map[EdgeKey]*MemoryEdge),
		out:         make(map[string]map[EdgeKey]struct{}),
		in:          make(map[string]map[EdgeKey]struct{}),
		edgeCap:     edgeCap,
		edgeEpsilon: edgeEpsilon,
	}
}

// Clone returns a deep copy of the graph's items and edges, safe to hand to
// a background goroutine (e.g. manifest generation) without holding the
// writer queue for the duration of the read.
func (g *Graph) Clone() *Graph {
	clone := New(g.clock, g.edgeCap, g.edgeEpsilon)
	for _, item := range g.items {
		cp := *item
		cp.Tags = make(map[string]struct{}, len(item.Tags))
		for k, v := range item.Tags {
			cp.Tags[k] = v
		}
		clone.LoadItem(&cp)
	}
	for _, edge := range g.edges {
		cp := *edge
		clone.LoadEdge(&cp)
	}
	return clone
}

// CreateItem generates a new id, clamps importance to [0,1], and inserts the
// item. Empty text is rejected.
func (g *Graph) CreateItem(itemType, text string, tags []string, importance float64, ttl TTL, scope string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}

	now := g.clock.NowMs()
	id := uuid.NewString()

	tagSet := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t != "" {
			tagSet[t] = struct{}{}
		}
	}

	item := &MemoryItem{
		ID:             id,
		Type:           itemType,
		Text:           text,
		Tags:           tagSet,
		Importance:     clamp01(importance),
		Energy:         0,
		TTL:            ttl,
		Scope:          scope,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	g.items[id] = item

	logging.GraphDebug("created item id=%s type=%s ttl=%s", id, itemType, ttl)
	return id, nil
}

// GetItem returns the item, or (nil, false) if it does not exist.
func (g *Graph) GetItem(id string) (*MemoryItem, bool) {
	item, ok := g.items[id]
	return item, ok
}

// UpdateItemEnergy sets an item's energy directly.
func (g *Graph) UpdateItemEnergy(id string, newEnergy float64) error {
	item, ok := g.items[id]
	if !ok {
		return fmt.Errorf("update energy %s: %w", id, ErrItemNotFound)
	}
	item.Energy = newEnergy
	item.UpdatedAt = g.clock.NowMs()
	return nil
}

// RecordAccess bumps accessCount and lastAccessedAt for an item.
func (g *Graph) RecordAccess(id string, at int64) error {
	item, ok := g.items[id]
	if !ok {
		return fmt.Errorf("record access %s: %w", id, ErrItemNotFound)
	}
	item.AccessCount++
	item.LastAccessedAt = at
	return nil
}

// SetImportance explicitly updates importance (the only mutation path for it).
func (g *Graph) SetImportance(id string, importance float64) error {
	item, ok := g.items[id]
	if !ok {
		return fmt.Errorf("set importance %s: %w", id, ErrItemNotFound)
	}
	item.Importance = clamp01(importance)
	item.UpdatedAt = g.clock.NowMs()
	return nil
}

// RecordFeedback increments an item's success/fail counters. success+fail
// never decreases (I5).
func (g *Graph) RecordFeedback(id string, success bool) error {
	item, ok := g.items[id]
	if !ok {
		return fmt.Errorf("record feedback %s: %w", id, ErrItemNotFound)
	}
	if success {
		item.Success++
	} else {
		item.Fail++
	}
	return nil
}

// RemoveItem deletes the item and all incident edges in one operation (I1).
func (g *Graph) RemoveItem(id string) error {
	if _, ok := g.items[id]; !ok {
		return fmt.Errorf("remove item %s: %w", id, ErrItemNotFound)
	}

	for key := range g.out[id] {
		g.deleteEdge(key)
	}
	for key := range g.in[id] {
		g.deleteEdge(key)
	}
	delete(g.items, id)
	delete(g.out, id)
	delete(g.in, id)

	logging.GraphDebug("removed item id=%s", id)
	return nil
}

// CreateOrReinforceEdge creates a new edge, or reinforces an existing one by
// moving its weight asymptotically toward 1: w <- clamp(w + delta*(1-w), 0, 1).
// Returns ErrDanglingEdge if either endpoint does not exist. Enforces the
// per-node edge cap by evicting the lowest-weight outgoing edge on overflow.
func (g *Graph) CreateOrReinforceEdge(from, to, relation string, delta float64) error {
	if _, ok := g.items[from]; !ok {
		return fmt.Errorf("edge from %s: %w", from, ErrDanglingEdge)
	}
	if _, ok := g.items[to]; !ok {
		return fmt.Errorf("edge to %s: %w", to, ErrDanglingEdge)
	}

	now := g.clock.NowMs()
	key := EdgeKey{From: from, To: to, Relation: relation}

	if edge, ok := g.edges[key]; ok {
		edge.Weight = clamp01(edge.Weight + delta*(1-edge.Weight))
		edge.LastReinforcedAt = now
		logging.GraphDebug("reinforced edge %s-[%s]->%s weight=%.4f", from, relation, to, edge.Weight)
		return nil
	}

	edge := &MemoryEdge{
		From:             from,
		To:               to,
		Relation:         relation,
		Weight:           clamp01(delta),
		LastReinforcedAt: now,
	}
	g.insertEdge(key, edge)
	g.enforceEdgeCap(from)
	logging.GraphDebug("created edge %s-[%s]->%s weight=%.4f", from, relation, to, edge.Weight)
	return nil
}

// DecayEdge multiplies an edge's weight by factor, dropping it if it falls
// below the configured epsilon. Returns nil if the edge does not exist (decay
// passes iterate over existing edges; a missing edge is not an error).
func (g *Graph) DecayEdge(from, to, relation string, factor float64) error {
	key := EdgeKey{From: from, To: to, Relation: relation}
	edge, ok := g.edges[key]
	if !ok {
		return nil
	}
	edge.Weight *= factor
	if edge.Weight < g.edgeEpsilon {
		g.deleteEdge(key)
	}
	return nil
}

// Neighbors returns the edges incident to id in the given direction.
func (g *Graph) Neighbors(id string, dir Direction) []*MemoryEdge {
	var keys map[EdgeKey]struct{}
	switch dir {
	case DirectionOut:
		keys = g.out[id]
	case DirectionIn:
		keys = g.in[id]
	case DirectionBoth:
		combined := make(map[EdgeKey]struct{}, len(g.out[id])+len(g.in[id]))
		for k := range g.out[id] {
			combined[k] = struct{}{}
		}
		for k := range g.in[id] {
			combined[k] = struct{}{}
		}
		keys = combined
	}

	out := make([]*MemoryEdge, 0, len(keys))
	for k := range keys {
		out = append(out, g.edges[k])
	}
	return out
}

// IterItems returns a snapshot slice of items matching filter (nil matches
// all). The slice is stable; callers must not mutate the graph while holding
// a reference taken mid-iteration.
func (g *Graph) IterItems(filter func(*MemoryItem) bool) []*MemoryItem {
	out := make([]*MemoryItem, 0, len(g.items))
	for _, item := range g.items {
		if filter == nil || filter(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadItem inserts an item exactly as given, bypassing id generation and
// validation. Used when restoring a snapshot, by Clone, and by consolidate
// to write back a merged item.
func (g *Graph) LoadItem(item *MemoryItem) {
	g.items[item.ID] = item
}

// LoadEdge inserts an edge exactly as given, bypassing reinforcement and
// the per-node edge cap. Returns false if either endpoint is missing, so the
// caller (the engine's startup reload) can repair by dropping the edge and
// logging a repair record, per the invariant-repair-on-load contract.
func (g *Graph) LoadEdge(edge *MemoryEdge) bool {
	if _, ok := g.items[edge.From]; !ok {
		return false
	}
	if _, ok := g.items[edge.To]; !ok {
		return false
	}
	key := EdgeKey{From: edge.From, To: edge.To, Relation: edge.Relation}
	g.insertEdge(key, edge)
	return true
}

// ItemCount and EdgeCount are cheap aggregates for stats.
func (g *Graph) ItemCount() int { return len(g.items) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AllEdges returns every edge currently in the graph, for snapshotting.
func (g *Graph) AllEdges() []*MemoryEdge {
	out := make([]*MemoryEdge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

func (g *Graph) insertEdge(key EdgeKey, edge *MemoryEdge) {
	g.edges[key] = edge
	if g.out[key.From] == nil {
		g.out[key.From] = make(map[EdgeKey]struct{})
	}
	g.out[key.From][key] = struct{}{}
	if g.in[key.To] == nil {
		g.in[key.To] = make(map[EdgeKey]struct{})
	}
	g.in[key.To][key] = struct{}{}
}

func (g *Graph) deleteEdge(key EdgeKey) {
	delete(g.edges, key)
	if m, ok := g.out[key.From]; ok {
		delete(m, key)
	}
	if m, ok := g.in[key.To]; ok {
		delete(m, key)
	}
}

// enforceEdgeCap evicts the lowest-weight outgoing edge from id if it now
// exceeds the configured cap.
func (g *Graph) enforceEdgeCap(id string) {
	keys := g.out[id]
	if len(keys) <= g.edgeCap {
		return
	}

	var worstKey EdgeKey
	var worstWeight = 2.0 // above the [0,1] range
	for k := range keys {
		e := g.edges[k]
		if e.Weight < worstWeight {
			worstWeight = e.Weight
			worstKey = k
		}
	}
	logging.GraphDebug("edge cap exceeded for %s, evicting %s-[%s]->%s weight=%.4f",
		id, worstKey.From, worstKey.Relation, worstKey.To, worstWeight)
	g.deleteEdge(worstKey)
}
