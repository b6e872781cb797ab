package engine

import (
	"context"
	"fmt"

	"memengine/internal/decay"
	"memengine/internal/graph"
	"memengine/internal/logging"
	"memengine/internal/policy"
)

func ttlMs(ttl graph.TTL) (ms int64, perpetual bool) {
	switch ttl {
	case graph.TTL7Days:
		return decay.DaysToMs(7), false
	case graph.TTL30Days:
		return decay.DaysToMs(30), false
	case graph.TTL90Days:
		return decay.DaysToMs(90), false
	case graph.TTL365Days:
		return decay.DaysToMs(365), false
	default:
		return 0, true
	}
}

// DecayBang applies one decay pass: for every item, the active decay policy
// function computes an effective half-life from its feedback counters, which
// rescales its energy toward zero by recency; items past their hard TTL
// bound are evicted outright and the eviction is recorded in history.
func (e *Engine) DecayBang(ctx context.Context, baseHalfLifeDays float64) (int, error) {
	v, err := e.do(func() (interface{}, error) {
		now := e.clock.NowMs()
		baseHalfMs := decay.DaysToMs(baseHalfLifeDays)

		items := e.graph.IterItems(nil)
		evicted := 0

		for _, item := range items {
			ttlDurationMs, perpetual := ttlMs(item.TTL)
			if !perpetual && now-item.CreatedAt > ttlDurationMs {
				if rerr := e.graph.RemoveItem(item.ID); rerr != nil {
					logging.Get(logging.CategoryEngine).Warn("decay! eviction of %s failed: %v", item.ID, rerr)
					continue
				}
				evicted++
				e.appendHistory("decay_evict", item.ID, "ttl expired")
				continue
			}

			halfLifeMs, derr := e.policy.Evaluate(ctx, policy.FuncDecay, []policy.Arg{
				policy.Num(float64(item.Success)), policy.Num(float64(item.Fail)), policy.Num(item.Energy),
				policy.Num(item.Importance), policy.Num(float64(now - item.LastAccessedAt)), policy.Num(float64(baseHalfMs)),
			})
			if derr != nil {
				logging.Get(logging.CategoryEngine).Warn("decay evaluation failed for %s, using default: %v", item.ID, derr)
				if vid, verr := e.policy.ActiveVersionID(policy.FuncDecay); verr == nil {
					_ = e.policy.RecordOutcome(vid, false)
				}
				halfLifeMs = float64(decay.DefaultHalfLife(int(item.Success), int(item.Fail), baseHalfMs))
			}

			rec := decay.Recency(now, item.LastAccessedAt, int64(halfLifeMs))
			_ = e.graph.UpdateItemEnergy(item.ID, item.Energy*rec)
		}

		e.appendHistory("decay", fmt.Sprintf("base=%.1fd", baseHalfLifeDays), fmt.Sprintf("evicted=%d", evicted))
		return evicted, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
