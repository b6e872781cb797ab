package activation

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"memengine/internal/clock"
	"memengine/internal/decay"
	"memengine/internal/graph"
	"memengine/internal/logging"
	"memengine/internal/policy"
)

// Engine runs recall over a Graph using a policy Manager for scoring,
// decay, and exploration.
type Engine struct {
	graph  *graph.Graph
	policy *policy.Manager
	clock  clock.Clock
}

// New returns an Engine bound to the given graph and policy manager.
func New(g *graph.Graph, p *policy.Manager, c clock.Clock) *Engine {
	return &Engine{graph: g, policy: p, clock: c}
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// seedScore computes a lexical overlap score in [0,1] between the query
// tokens and an item's text/tags: each query token that is a tag or a
// substring of the text counts one hit, normalized by the number of query
// tokens.
func seedScore(queryTokens []string, item *graph.MemoryItem) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	lowerText := strings.ToLower(item.Text)

	var hits float64
	for _, tok := range queryTokens {
		if _, isTag := item.Tags[tok]; isTag {
			hits += 1.0
			continue
		}
		if strings.Contains(lowerText, tok) {
			hits += 1.0
		}
	}
	score := hits / float64(len(queryTokens))
	if score > 1 {
		score = 1
	}
	return score
}

// Recall runs the full spreading-activation algorithm: seed selection,
// propagation, recallScore ranking, exploration substitution, and
// co-activation write-back. It returns the ranked results and the
// SessionRecord to be appended to history by the caller.
func (e *Engine) Recall(ctx context.Context, query string, limit int) ([]RankedItem, SessionRecord, error) {
	timer := logging.StartTimer(logging.CategoryActivation, "Recall")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}
	now := e.clock.NowMs()
	params, activeVersions := e.policy.GetPolicy()
	halfLifeMs := decay.DaysToMs(params.HalfLifeDays)

	allItems := e.graph.IterItems(nil)
	tokens := tokenize(query)

	activation := make(map[string]float64, len(allItems))
	anySeeded := false
	for _, item := range allItems {
		s := seedScore(tokens, item)
		if s > 0 {
			activation[item.ID] = s * item.Importance
			anySeeded = true
		}
	}

	if !anySeeded {
		fallback := topByImportanceRecency(allItems, now, halfLifeMs, limit)
		for _, item := range fallback {
			activation[item.ID] = item.Importance
		}
	}

	// Each step spreads only the activation that arrived in the previous
	// step (the frontier); activation persists and propagation is additive.
	frontier := make(map[string]float64, len(activation))
	for id, a := range activation {
		frontier[id] = a
	}
	for step := 0; step < params.ActivationSteps; step++ {
		next := make(map[string]float64, len(activation))
		for id, a := range activation {
			next[id] += a
		}
		wave := make(map[string]float64)
		for id, a := range frontier {
			if a <= params.ActivationThreshold {
				continue
			}
			for _, edge := range e.graph.Neighbors(id, graph.DirectionOut) {
				next[edge.To] += a * edge.Weight * params.ActivationDecay
				wave[edge.To] += a * edge.Weight * params.ActivationDecay
			}
		}
		activation = next
		frontier = wave
	}

	type scored struct {
		item  *graph.MemoryItem
		act   float64
		score float64
	}

	var candidates []scored
	for _, item := range allItems {
		a, ok := activation[item.ID]
		if !ok || a <= 0 {
			continue
		}
		rec := decay.Recency(now, item.LastAccessedAt, halfLifeMs)

		score, err := e.policy.Evaluate(ctx, policy.FuncRecallScore, []policy.Arg{
			policy.Num(a), policy.Num(rec), policy.Num(item.Importance),
			policy.Num(float64(item.AccessCount)), policy.Num(float64(item.Success)), policy.Num(float64(item.Fail)),
		})
		if err != nil {
			logging.Get(logging.CategoryActivation).Warn("recallScore evaluation failed for %s, falling back to activation: %v", item.ID, err)
			if vid, verr := e.policy.ActiveVersionID(policy.FuncRecallScore); verr == nil {
				_ = e.policy.RecordOutcome(vid, false)
			}
			score = a
		}

		candidates = append(candidates, scored{item: item, act: a, score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		recI := decay.Recency(now, candidates[i].item.LastAccessedAt, halfLifeMs)
		recJ := decay.Recency(now, candidates[j].item.LastAccessedAt, halfLifeMs)
		if recI != recJ {
			return recI > recJ
		}
		return candidates[i].item.ID < candidates[j].item.ID
	})

	if len(candidates) == 0 {
		return nil, SessionRecord{}, nil
	}

	topN := limit
	if topN > len(candidates) {
		topN = len(candidates)
	}
	top := candidates[:topN]

	tailN := 2 * limit
	tailStart := topN
	tailEnd := tailStart + tailN
	if tailEnd > len(candidates) {
		tailEnd = len(candidates)
	}
	tail := candidates[tailStart:tailEnd]

	if len(tail) > 0 && len(top) > 0 {
		acts := make([]float64, len(tail))
		recs := make([]float64, len(tail))
		imps := make([]float64, len(tail))
		accs := make([]float64, len(tail))
		succs := make([]float64, len(tail))
		fails := make([]float64, len(tail))
		for i, c := range tail {
			acts[i] = c.act
			recs[i] = decay.Recency(now, c.item.LastAccessedAt, halfLifeMs)
			imps[i] = c.item.Importance
			accs[i] = float64(c.item.AccessCount)
			succs[i] = float64(c.item.Success)
			fails[i] = float64(c.item.Fail)
		}

		idx, err := e.policy.Evaluate(ctx, policy.FuncExploration, []policy.Arg{
			policy.Num(float64(limit)), policy.Num(float64(len(tail))),
			policy.Vec(acts), policy.Vec(recs), policy.Vec(imps), policy.Vec(accs), policy.Vec(succs), policy.Vec(fails),
		})
		if err != nil {
			if vid, verr := e.policy.ActiveVersionID(policy.FuncExploration); verr == nil {
				_ = e.policy.RecordOutcome(vid, false)
			}
		} else if k := int(idx); k >= 0 && k < len(tail) {
			top[len(top)-1] = tail[k]
			logging.ActivationDebug("exploration substituted tail[%d]=%s into final slot", k, tail[k].item.ID)
		}
	}

	results := make([]RankedItem, 0, len(top))
	returnedIDs := make([]string, 0, len(top))
	for _, c := range top {
		results = append(results, RankedItem{
			ID:         c.item.ID,
			Score:      c.score,
			Type:       c.item.Type,
			Preview:    preview(c.item.Text, 80),
			Importance: c.item.Importance,
			Tags:       c.item.TagSlice(),
		})
		returnedIDs = append(returnedIDs, c.item.ID)
	}

	for _, id := range returnedIDs {
		a := activation[id]
		_ = e.graph.UpdateItemEnergy(id, itemEnergyAfterRecall(e.graph, id, params.ReinforceDelta*a))
		_ = e.graph.RecordAccess(id, now)
	}
	for i := 0; i < len(returnedIDs); i++ {
		for j := i + 1; j < len(returnedIDs); j++ {
			delta := params.ReinforceDelta * minFloat(activation[returnedIDs[i]], activation[returnedIDs[j]])
			_ = e.graph.CreateOrReinforceEdge(returnedIDs[i], returnedIDs[j], ":co_activated", delta)
		}
	}

	session := SessionRecord{
		SessionID:      uuid.NewString(),
		Query:          query,
		At:             now,
		ReturnedIDs:    returnedIDs,
		PolicyVersions: activeVersions,
	}

	return results, session, nil
}

func itemEnergyAfterRecall(g *graph.Graph, id string, delta float64) float64 {
	item, ok := g.GetItem(id)
	if !ok {
		return delta
	}
	e := item.Energy + delta
	if e < 0 {
		e = 0
	}
	return e
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

func topByImportanceRecency(items []*graph.MemoryItem, now, halfLifeMs int64, limit int) []*graph.MemoryItem {
	k := limit
	if k <= 0 {
		k = 10
	}
	ranked := make([]*graph.MemoryItem, len(items))
	copy(ranked, items)
	sort.Slice(ranked, func(i, j int) bool {
		si := ranked[i].Importance * decay.Recency(now, ranked[i].LastAccessedAt, halfLifeMs)
		sj := ranked[j].Importance * decay.Recency(now, ranked[j].LastAccessedAt, halfLifeMs)
		return si > sj
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}
