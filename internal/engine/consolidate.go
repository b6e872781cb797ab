package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"memengine/internal/graph"
	"memengine/internal/logging"
)

var normalizeWhitespace = regexp.MustCompile(`\s+`)
var normalizeNonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

func normalizedTextHash(text string) string {
	lower := strings.ToLower(text)
	stripped := normalizeNonAlnum.ReplaceAllString(lower, "")
	collapsed := strings.TrimSpace(normalizeWhitespace.ReplaceAllString(stripped, " "))
	sum := sha1.Sum([]byte(collapsed))
	return hex.EncodeToString(sum[:])
}

// Consolidate merges near-duplicate items: items whose normalized text
// hashes to the same bucket are collapsed into the highest-importance
// survivor, which inherits the union of tags, the sum of access/feedback
// counters, and every incident edge (rewired to point at it) and session
// reference the merged items had. Returns the number of items removed.
func (e *Engine) Consolidate() (int, error) {
	v, err := e.do(func() (interface{}, error) {
		items := e.graph.IterItems(nil)
		buckets := make(map[string][]*graph.MemoryItem)
		for _, item := range items {
			h := normalizedTextHash(item.Text)
			buckets[h] = append(buckets[h], item)
		}

		removed := 0
		replacements := make(map[string]string) // mergedID -> survivorID

		for _, members := range buckets {
			if len(members) < 2 {
				continue
			}
			sort.Slice(members, func(i, j int) bool {
				if members[i].Importance != members[j].Importance {
					return members[i].Importance > members[j].Importance
				}
				return members[i].ID < members[j].ID
			})
			survivor := members[0]
			mergedAway := members[1:]

			unionTags := make(map[string]struct{}, len(survivor.Tags))
			for t := range survivor.Tags {
				unionTags[t] = struct{}{}
			}
			maxEnergy := survivor.Energy
			accessSum := survivor.AccessCount
			successSum := survivor.Success
			failSum := survivor.Fail

			for _, m := range mergedAway {
				for t := range m.Tags {
					unionTags[t] = struct{}{}
				}
				if m.Energy > maxEnergy {
					maxEnergy = m.Energy
				}
				accessSum += m.AccessCount
				successSum += m.Success
				failSum += m.Fail
			}

			for _, m := range mergedAway {
				for _, edge := range e.graph.Neighbors(m.ID, graph.DirectionBoth) {
					from, to := edge.From, edge.To
					if from == m.ID {
						from = survivor.ID
					}
					if to == m.ID {
						to = survivor.ID
					}
					if from == to {
						continue
					}
					_ = e.graph.CreateOrReinforceEdge(from, to, edge.Relation, edge.Weight)
				}
				if rerr := e.graph.RemoveItem(m.ID); rerr != nil {
					logging.Get(logging.CategoryEngine).Warn("consolidate: failed to remove %s: %v", m.ID, rerr)
					continue
				}
				replacements[m.ID] = survivor.ID
				removed++
			}

			merged := *survivor
			merged.Tags = unionTags
			merged.Energy = maxEnergy
			merged.AccessCount = accessSum
			merged.Success = successSum
			merged.Fail = failSum
			e.graph.LoadItem(&merged)
		}

		if len(replacements) > 0 {
			for i, sess := range e.sessions {
				seen := make(map[string]bool, len(sess.ReturnedIDs))
				var rewritten []string
				for _, id := range sess.ReturnedIDs {
					if survivorID, ok := replacements[id]; ok {
						id = survivorID
					}
					if !seen[id] {
						seen[id] = true
						rewritten = append(rewritten, id)
					}
				}
				e.sessions[i].ReturnedIDs = rewritten
			}
		}

		e.appendHistory("consolidate", "", fmt.Sprintf("removed=%d", removed))
		return removed, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
