// Package decay implements the recency scoring and half-life adjustment
// formulas used by recall ranking and the decay! operation.
package decay

import "math"

// Recency returns an exponential recency score in (0, 1] given the elapsed
// time since last access and a half-life, all in milliseconds.
//
// recency = exp(-ln(2) * max(0, now-lastAccessedAt) / halfLifeMs)
func Recency(nowMs, lastAccessedMs, halfLifeMs int64) float64 {
	if halfLifeMs <= 0 {
		halfLifeMs = 1
	}
	elapsed := nowMs - lastAccessedMs
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-math.Ln2 * float64(elapsed) / float64(halfLifeMs))
}

// DefaultHalfLife is the default decay policy: items with a higher
// success-to-total ratio get a longer effective half-life, from 0.5x the
// base half-life with no successes up to just under 2x for an item with
// only successes.
//
// scale = 0.5 + 1.5 * (success / (success+fail+1))
// halfLife = baseHalfMs * scale
func DefaultHalfLife(success, fail int, baseHalfMs int64) int64 {
	total := float64(success + fail + 1)
	ratio := float64(success) / total
	scale := 0.5 + 1.5*ratio
	return int64(float64(baseHalfMs) * scale)
}

// DaysToMs converts a day count to milliseconds.
func DaysToMs(days float64) int64 {
	return int64(days * 24 * 60 * 60 * 1000)
}
