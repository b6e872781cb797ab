// Package graph implements the in-memory item/edge arena and its
// invariant-preserving mutators: typed CRUD over MemoryItems and the
// directed, reinforcement-weighted MemoryEdges between them.
package graph

import "errors"

// Sentinel errors returned by Graph mutators. Callers should check with
// errors.Is; these propagate to the caller verbatim as user errors.
var (
	ErrItemNotFound  = errors.New("item not found")
	ErrDanglingEdge  = errors.New("edge references a nonexistent item")
	ErrEmptyText     = errors.New("item text must not be empty")
	ErrUnknownType   = errors.New("unknown direction")
)

// TTL is one of a small closed set of lifetime upper bounds.
type TTL string

const (
	TTL7Days     TTL = "7d"
	TTL30Days    TTL = "30d"
	TTL90Days    TTL = "90d"
	TTL365Days   TTL = "365d"
	TTLPerpetual TTL = "perpetual"
)

// Direction selects which incident edges Neighbors returns.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

// MemoryItem is a single stored unit of text with reinforcement state.
type MemoryItem struct {
	ID             string
	Type           string
	Text           string
	Tags           map[string]struct{}
	Importance     float64
	Energy         float64
	TTL            TTL
	Scope          string
	CreatedAt      int64
	UpdatedAt      int64
	LastAccessedAt int64
	AccessCount    int64
	Success        int64
	Fail           int64
}

// TagSlice returns the item's tags as a sorted-free slice (order not guaranteed).
func (m *MemoryItem) TagSlice() []string {
	out := make([]string, 0, len(m.Tags))
	for t := range m.Tags {
		out = append(out, t)
	}
	return out
}

// EdgeKey uniquely identifies an edge: at most one edge exists per
// (from, to, relation) triple.
type EdgeKey struct {
	From     string
	To       string
	Relation string
}

// MemoryEdge is a directed, weighted relation between two items.
type MemoryEdge struct {
	From             string
	To               string
	Relation         string
	Weight           float64
	LastReinforcedAt int64
	Context          string
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
