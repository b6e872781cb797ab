package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"memengine/internal/logging"
)

// GenAISummarizer names themes via a single batched Gemini call per
// manifest regeneration: one prompt listing every community's keywords and
// previews, one structured response mapping communityId to theme name.
type GenAISummarizer struct {
	client *genai.Client
	model  string
}

// NewGenAISummarizer creates a GenAI-backed Summarizer.
func NewGenAISummarizer(ctx context.Context, apiKey, model string) (*GenAISummarizer, error) {
	timer := logging.StartTimer(logging.CategoryManifest, "NewGenAISummarizer")
	defer timer.Stop()

	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}

	return &GenAISummarizer{client: client, model: model}, nil
}

// Summarize issues one GenerateContent call describing every community and
// asks for an 8-word-or-fewer theme name per community, returned as JSON.
func (s *GenAISummarizer) Summarize(ctx context.Context, batch []CommunityInput) ([]CommunityTheme, error) {
	timer := logging.StartTimer(logging.CategoryManifest, "GenAISummarizer.Summarize")
	defer timer.Stop()

	if len(batch) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	prompt := buildPrompt(batch)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	result, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		logging.Get(logging.CategoryManifest).Error("GenAI summarize call failed: %v", err)
		return nil, fmt.Errorf("GenAI generate content failed: %w", err)
	}

	text := result.Text()
	themes, err := parseThemes(text)
	if err != nil {
		logging.Get(logging.CategoryManifest).Warn("GenAI summarize response unparseable: %v", err)
		return nil, fmt.Errorf("parsing GenAI response: %w", err)
	}

	return themes, nil
}

func buildPrompt(batch []CommunityInput) string {
	var sb strings.Builder
	sb.WriteString("For each community below, give a short theme name (at most 8 words). ")
	sb.WriteString("Respond with a JSON array of objects: [{\"communityId\":\"...\",\"themeName\":\"...\"}].\n\n")
	for _, c := range batch {
		sb.WriteString(fmt.Sprintf("Community %s\nKeywords: %s\nExamples:\n", c.CommunityID, strings.Join(c.Keywords, ", ")))
		for _, p := range c.Previews {
			sb.WriteString("- " + p + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func parseThemes(text string) ([]CommunityTheme, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var raw []struct {
		CommunityID string `json:"communityId"`
		ThemeName   string `json:"themeName"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, err
	}

	out := make([]CommunityTheme, 0, len(raw))
	for _, r := range raw {
		out = append(out, CommunityTheme{CommunityID: r.CommunityID, ThemeName: r.ThemeName})
	}
	return out, nil
}

// defaultCallTimeout bounds a single summarize call so manifest regeneration
// never blocks indefinitely on a stalled LLM backend.
const defaultCallTimeout = 30 * time.Second
