package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"memengine/internal/config"
	"memengine/internal/policy"
	"memengine/internal/summarizer"
)

func newEvaluator(cfg *config.Config) (policy.Evaluator, error) {
	t := time.Duration(cfg.Policy.EvalTimeoutMs) * time.Millisecond
	switch cfg.Policy.Backend {
	case "", "sexpr":
		return policy.NewSexprEvaluator(t), nil
	case "yaegi":
		return policy.NewYaegiEvaluator(t), nil
	default:
		return nil, userErrf("unknown policy backend %q (want sexpr or yaegi)", cfg.Policy.Backend)
	}
}

// newSummarizer builds the manifest theme-naming backend. A missing API key
// is not fatal: the manifest generator falls back to keyword-joined names.
func newSummarizer(cfg *config.Config) (summarizer.Summarizer, error) {
	key := cfg.Manifest.SummarizerKey
	if key == "" {
		key = os.Getenv("MEMORY_SUMMARIZER_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("no summarizer API key configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return summarizer.NewGenAISummarizer(ctx, key, cfg.Manifest.SummarizerModel)
}
