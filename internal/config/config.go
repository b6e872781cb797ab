// Package config loads and validates engine configuration from a YAML file,
// layered with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"memengine/internal/logging"
)

// Config holds all memory engine configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Policy     PolicyConfig     `yaml:"policy"`
	Activation ActivationConfig `yaml:"activation"`
	Manifest   ManifestConfig   `yaml:"manifest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig controls snapshot persistence.
type StoreConfig struct {
	StateDir     string `yaml:"state_dir"`
	SnapshotFile string `yaml:"snapshot_file"`
}

// PolicyConfig controls the policy evaluator and feedback attribution.
type PolicyConfig struct {
	EvalTimeoutMs     int64  `yaml:"eval_timeout_ms"`
	AttributionWindow int    `yaml:"attribution_window"`
	Backend           string `yaml:"backend"` // "sexpr" or "yaegi"
}

// ActivationConfig controls recall's spreading-activation pass.
type ActivationConfig struct {
	Steps          int     `yaml:"steps"`
	Decay          float64 `yaml:"decay"`
	Threshold      float64 `yaml:"threshold"`
	ReinforceDelta float64 `yaml:"reinforce_delta"`
	HalfLifeDays   float64 `yaml:"half_life_days"`
	EdgeCap        int     `yaml:"edge_cap"`
	EdgeEpsilon    float64 `yaml:"edge_epsilon"`
}

// ManifestConfig controls manifest regeneration and the summarizer backend.
type ManifestConfig struct {
	TTLSeconds          int64  `yaml:"ttl_seconds"`
	InvalidationCount   int    `yaml:"invalidation_count"`
	TopCommunities      int    `yaml:"top_communities"`
	MaxTokens           int    `yaml:"max_tokens"`
	SummarizerEndpoint  string `yaml:"summarizer_endpoint"`
	SummarizerKey       string `yaml:"summarizer_key"`
	SummarizerModel     string `yaml:"summarizer_model"`
}

// LoggingConfig controls the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			StateDir:     "data",
			SnapshotFile: "memory.db",
		},
		Policy: PolicyConfig{
			EvalTimeoutMs:     5000,
			AttributionWindow: 20,
			Backend:           "sexpr",
		},
		Activation: ActivationConfig{
			Steps:          3,
			Decay:          0.7,
			Threshold:      0.05,
			ReinforceDelta: 0.1,
			HalfLifeDays:   14,
			EdgeCap:        256,
			EdgeEpsilon:    0.01,
		},
		Manifest: ManifestConfig{
			TTLSeconds:        60,
			InvalidationCount: 100,
			TopCommunities:    5,
			MaxTokens:         2000,
			SummarizerModel:   "gemini-2.0-flash",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Save writes the config as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				cfg.applyEnvOverrides()
				return cfg, nil
			}
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies spec-mandated environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("MEMORY_STATE_DIR"); dir != "" {
		c.Store.StateDir = dir
	}
	if endpoint := os.Getenv("MEMORY_SUMMARIZER_ENDPOINT"); endpoint != "" {
		c.Manifest.SummarizerEndpoint = endpoint
	}
	if key := os.Getenv("MEMORY_SUMMARIZER_KEY"); key != "" {
		c.Manifest.SummarizerKey = key
	}
	if ttl := os.Getenv("MEMORY_MANIFEST_TTL_SEC"); ttl != "" {
		if v, err := strconv.ParseInt(ttl, 10, 64); err == nil {
			c.Manifest.TTLSeconds = v
		}
	}
	if steps := os.Getenv("MEMORY_ACTIVATION_STEPS"); steps != "" {
		if v, err := strconv.Atoi(steps); err == nil {
			c.Activation.Steps = v
		}
	}
}

// loggingConfig converts to the logging package's config shape.
func (c *Config) loggingConfig() logging.Config {
	return logging.Config{
		DebugMode:  c.Logging.DebugMode,
		Categories: c.Logging.Categories,
		Level:      c.Logging.Level,
		JSONFormat: c.Logging.JSONFormat,
	}
}

// InitLogging wires this config's Logging section into the logging package.
func (c *Config) InitLogging() error {
	return logging.Initialize(c.Store.StateDir, c.loggingConfig())
}
