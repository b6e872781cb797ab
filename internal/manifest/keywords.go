package manifest

import (
	"regexp"
	"sort"
	"strings"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "as": true, "by": true, "it": true, "this": true, "that": true,
	"from": true, "has": true, "have": true, "had": true, "not": true, "we": true,
	"you": true, "i": true, "they": true, "he": true, "she": true, "its": true,
}

var keywordTokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// TopKeywords returns up to n tokens by frequency across the given items'
// text and tags, filtering stopwords and single-character tokens.
func TopKeywords(nodes []ProjectionNode, n int) []string {
	freq := make(map[string]int)
	for _, node := range nodes {
		for _, tok := range keywordTokenPattern.FindAllString(strings.ToLower(node.Text), -1) {
			if len(tok) <= 1 || stopwords[tok] {
				continue
			}
			freq[tok]++
		}
		for _, tag := range node.Tags {
			tok := strings.ToLower(tag)
			if len(tok) <= 1 || stopwords[tok] {
				continue
			}
			freq[tok]++
		}
	}

	type kv struct {
		token string
		count int
	}
	kvs := make([]kv, 0, len(freq))
	for t, c := range freq {
		kvs = append(kvs, kv{t, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].token < kvs[j].token
	})

	if n > len(kvs) {
		n = len(kvs)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = kvs[i].token
	}
	return out
}
