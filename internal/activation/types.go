// Package activation implements spreading-activation recall: seed
// selection, N-step propagation over the graph, recallScore-based ranking,
// exploration substitution, and co-activation write-back.
package activation

import "memengine/internal/policy"

// RankedItem is a single recall result. Full text is never returned; callers
// fetch it separately via get-item.
type RankedItem struct {
	ID         string
	Score      float64
	Type       string
	Preview    string
	Importance float64
	Tags       []string
}

// SessionRecord logs a single recall call: which items it returned and which
// policy versions were active at the time, so feedback can later be
// attributed to them.
type SessionRecord struct {
	SessionID      string
	Query          string
	At             int64
	ReturnedIDs    []string
	PolicyVersions map[policy.FunctionName]string
}
