package engine

import (
	"context"
	"fmt"

	"memengine/internal/activation"
	"memengine/internal/graph"
	"memengine/internal/logging"
	"memengine/internal/manifest"
	"memengine/internal/policy"
)

// Remember creates a new item and returns its id.
func (e *Engine) Remember(itemType, text string, tags []string, importance float64, ttl graph.TTL, scope string) (string, error) {
	v, err := e.do(func() (interface{}, error) {
		id, err := e.graph.CreateItem(itemType, text, tags, importance, ttl, scope)
		if err != nil {
			return "", err
		}
		e.appendHistory("remember", text, id)
		e.manifest.NoteChange(1)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetItem returns the item, or ok=false if it does not exist (or has
// TTL-expired and was already evicted by a decay! pass).
func (e *Engine) GetItem(id string) (*graph.MemoryItem, bool, error) {
	v, err := e.do(func() (interface{}, error) {
		item, ok := e.graph.GetItem(id)
		return itemOrNil{item, ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(itemOrNil)
	return r.item, r.ok, nil
}

type itemOrNil struct {
	item *graph.MemoryItem
	ok   bool
}

// Recall runs the spreading-activation engine and appends the resulting
// session to the bounded ring buffer used for feedback attribution.
func (e *Engine) Recall(ctx context.Context, query string, limit int) ([]activation.RankedItem, error) {
	v, err := e.do(func() (interface{}, error) {
		results, session, rerr := e.activation.Recall(ctx, query, limit)
		if rerr != nil {
			return nil, rerr
		}
		if session.SessionID != "" {
			e.sessions = append(e.sessions, session)
			if len(e.sessions) > sessionRingCapacity {
				e.sessions = e.sessions[len(e.sessions)-sessionRingCapacity:]
			}
		}
		e.appendHistory("recall", query, fmt.Sprintf("%d results", len(results)))
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]activation.RankedItem), nil
}

// Associate creates or reinforces an edge between two existing items.
func (e *Engine) Associate(from, to, relation string, weight float64) error {
	_, err := e.do(func() (interface{}, error) {
		if err := e.graph.CreateOrReinforceEdge(from, to, relation, weight); err != nil {
			return nil, err
		}
		e.appendHistory("associate", fmt.Sprintf("%s-%s-%s", from, relation, to), "ok")
		e.manifest.NoteChange(1)
		return nil, nil
	})
	return err
}

// TraceNode is one node of the subgraph returned by Trace.
type TraceNode struct {
	ID    string
	Depth int
}

// TraceEdge is one edge of the subgraph returned by Trace.
type TraceEdge struct {
	From, To, Relation string
	Weight             float64
}

// Trace performs a breadth-first search outward from startId up to depth
// hops and returns the visited subgraph. It never mutates state.
func (e *Engine) Trace(startID string, depth int) ([]TraceNode, []TraceEdge, error) {
	v, err := e.do(func() (interface{}, error) {
		if _, ok := e.graph.GetItem(startID); !ok {
			return nil, graph.ErrItemNotFound
		}
		nodes := []TraceNode{{ID: startID, Depth: 0}}
		visited := map[string]bool{startID: true}
		var edges []TraceEdge
		frontier := []string{startID}

		for d := 0; d < depth && len(frontier) > 0; d++ {
			var next []string
			for _, id := range frontier {
				for _, edge := range e.graph.Neighbors(id, graph.DirectionBoth) {
					other := edge.To
					if other == id {
						other = edge.From
					}
					edges = append(edges, TraceEdge{From: edge.From, To: edge.To, Relation: edge.Relation, Weight: edge.Weight})
					if !visited[other] {
						visited[other] = true
						nodes = append(nodes, TraceNode{ID: other, Depth: d + 1})
						next = append(next, other)
					}
				}
			}
			frontier = next
		}

		return tracePair{nodes, edges}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	r := v.(tracePair)
	return r.nodes, r.edges, nil
}

type tracePair struct {
	nodes []TraceNode
	edges []TraceEdge
}

// Activate runs the raw diagnostic activation pass with no write-back.
func (e *Engine) Activate(seedIDs []string, steps int, decayFactor, threshold float64) (map[string]float64, error) {
	v, err := e.do(func() (interface{}, error) {
		return e.activation.ActivateDiagnostic(seedIDs, steps, decayFactor, threshold), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]float64), nil
}

// Feedback increments id's success/fail counter and attributes the same
// outcome to every PolicyVersion active in any of the last AttributionWindow
// sessions that returned id.
func (e *Engine) Feedback(id string, success bool) error {
	_, err := e.do(func() (interface{}, error) {
		if err := e.graph.RecordFeedback(id, success); err != nil {
			return nil, err
		}

		window := e.cfg.Policy.AttributionWindow
		if window <= 0 {
			window = 20
		}
		attributed := make(map[string]bool)
		matched := 0
		for i := len(e.sessions) - 1; i >= 0 && matched < window; i-- {
			sess := e.sessions[i]
			returned := false
			for _, rid := range sess.ReturnedIDs {
				if rid == id {
					returned = true
					break
				}
			}
			if !returned {
				continue
			}
			matched++
			for _, versionID := range sess.PolicyVersions {
				if attributed[versionID] {
					continue
				}
				attributed[versionID] = true
				_ = e.policy.RecordOutcome(versionID, success)
			}
		}

		e.appendHistory("feedback", id, fmt.Sprintf("success=%v, attributed=%d versions", success, len(attributed)))
		return nil, nil
	})
	return err
}

// GetPolicy returns the numeric params and active version ids.
func (e *Engine) GetPolicy() (policy.Params, map[policy.FunctionName]string, error) {
	v, err := e.do(func() (interface{}, error) {
		params, active := e.policy.GetPolicy()
		return policyPair{params, active}, nil
	})
	if err != nil {
		return policy.Params{}, nil, err
	}
	r := v.(policyPair)
	return r.params, r.active, nil
}

type policyPair struct {
	params policy.Params
	active map[policy.FunctionName]string
}

// SetPolicy replaces the numeric params wholesale.
func (e *Engine) SetPolicy(params policy.Params) error {
	_, err := e.do(func() (interface{}, error) {
		e.policy.SetParams(params)
		e.appendHistory("set_policy", "", "ok")
		return nil, nil
	})
	return err
}

// GetPolicyFn returns a specific version's source.
func (e *Engine) GetPolicyFn(versionID string) (*policy.Version, error) {
	v, err := e.do(func() (interface{}, error) {
		ver, ok := e.policy.Version(versionID)
		if !ok {
			return nil, policy.ErrUnknownPolicyVersion
		}
		return ver, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*policy.Version), nil
}

// SetPolicyFn installs (or reuses, by content hash) a new expression for name
// and makes it active. The expression is probe-validated before acceptance.
func (e *Engine) SetPolicyFn(ctx context.Context, name policy.FunctionName, source string) (string, error) {
	v, err := e.do(func() (interface{}, error) {
		id, serr := e.policy.SetPolicyFn(ctx, name, source)
		if serr != nil {
			return "", serr
		}
		e.appendHistory("set_policy_fn", string(name), id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RevertPolicyFn makes a previously-installed version active again.
func (e *Engine) RevertPolicyFn(name policy.FunctionName, versionID string) error {
	_, err := e.do(func() (interface{}, error) {
		if rerr := e.policy.RevertPolicyFn(name, versionID); rerr != nil {
			return nil, rerr
		}
		e.appendHistory("revert_policy_fn", fmt.Sprintf("%s:%s", name, versionID), "ok")
		return nil, nil
	})
	return err
}

// ListPolicyVersions returns every stored version across all functions.
func (e *Engine) ListPolicyVersions() ([]*policy.Version, error) {
	v, err := e.do(func() (interface{}, error) {
		return e.policy.ListVersions(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*policy.Version), nil
}

// Snapshot forces an immediate Store.save of the current state.
func (e *Engine) Snapshot() error {
	_, err := e.do(func() (interface{}, error) {
		st := e.exportState()
		if serr := e.store.Save(st); serr != nil {
			logging.Get(logging.CategoryStore).Error("snapshot save failed: %v", serr)
			e.appendHistory("snapshot", "", "failed: "+serr.Error())
			return nil, nil
		}
		e.appendHistory("snapshot", "", "ok")
		return nil, nil
	})
	return err
}

// Stats reports counts and cheap aggregates over the live graph and policy
// state: per-type item counts, average edge weight, and policy version
// counts, beyond the bare item/edge/session/history totals.
type Stats struct {
	ItemCount          int
	EdgeCount          int
	SessionCount       int
	HistoryCount       int
	ItemsByType        map[string]int
	AvgEdgeWeight      float64
	PolicyVersionCount int
}

func (e *Engine) Stats() (Stats, error) {
	v, err := e.do(func() (interface{}, error) {
		items := e.graph.IterItems(nil)
		byType := make(map[string]int)
		for _, item := range items {
			byType[item.Type]++
		}

		edges := e.graph.AllEdges()
		var weightSum float64
		for _, edge := range edges {
			weightSum += edge.Weight
		}
		avgWeight := 0.0
		if len(edges) > 0 {
			avgWeight = weightSum / float64(len(edges))
		}

		return Stats{
			ItemCount:          len(items),
			EdgeCount:          len(edges),
			SessionCount:       len(e.sessions),
			HistoryCount:       len(e.history),
			ItemsByType:        byType,
			AvgEdgeWeight:      avgWeight,
			PolicyVersionCount: len(e.policy.ListVersions()),
		}, nil
	})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

// Manifest returns the current cached manifest, triggering background
// regeneration if stale. It reads a cloned snapshot so generation never
// blocks the writer queue.
func (e *Engine) Manifest(ctx context.Context) (manifest.Manifest, error) {
	v, err := e.do(func() (interface{}, error) {
		snapshot := e.graph.Clone()
		return snapshot, nil
	})
	if err != nil {
		return manifest.Manifest{}, err
	}
	snapshot := v.(*graph.Graph)
	return e.manifest.Get(ctx, snapshot), nil
}
