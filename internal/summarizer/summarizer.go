// Package summarizer defines the pluggable LLM theme-naming interface used
// by the manifest generator, plus a genai-backed default implementation.
package summarizer

import "context"

// CommunityInput is one community's keywords and representative item
// previews, batched into a single Summarize call.
type CommunityInput struct {
	CommunityID string
	Keywords    []string
	Previews    []string
}

// CommunityTheme is the LLM-assigned name for one community.
type CommunityTheme struct {
	CommunityID string
	ThemeName   string
}

// Summarizer names themes for a batch of communities in one call. It must
// be idempotent on identical input; failure is recoverable by the caller,
// which falls back to keyword-joining.
type Summarizer interface {
	Summarize(ctx context.Context, batch []CommunityInput) ([]CommunityTheme, error)
}

// KeywordFallback names each community by joining its top-2 keywords. Used
// when no Summarizer is configured or the configured one fails.
func KeywordFallback(batch []CommunityInput) []CommunityTheme {
	out := make([]CommunityTheme, 0, len(batch))
	for _, c := range batch {
		name := ""
		switch {
		case len(c.Keywords) >= 2:
			name = c.Keywords[0] + " / " + c.Keywords[1]
		case len(c.Keywords) == 1:
			name = c.Keywords[0]
		default:
			name = "uncategorized"
		}
		out = append(out, CommunityTheme{CommunityID: c.CommunityID, ThemeName: name})
	}
	return out
}
