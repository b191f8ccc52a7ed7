package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables.
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	// Model defaults match the Moonshot endpoint the tool was built
	// against.
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "https://api.moonshot.cn/v1"
	}
	if cfg.Model.ModelName == "" {
		cfg.Model.ModelName = "kimi-latest"
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 1.0
	}
	if cfg.Model.RequestTimeoutSeconds == 0 {
		cfg.Model.RequestTimeoutSeconds = 120
	}
	if cfg.Model.RateLimitPerMinute == 0 {
		cfg.Model.RateLimitPerMinute = 60
	}

	if cfg.Generation.Concurrency == 0 {
		cfg.Generation.Concurrency = 5
	}
	if cfg.Generation.NarrativeField == "" {
		cfg.Generation.NarrativeField = "inner_monologue"
	}

	if cfg.Source.SentenceColumn == "" {
		cfg.Source.SentenceColumn = "自我肯定语"
	}
	if cfg.Source.FilterColumn == "" {
		cfg.Source.FilterColumn = "权重"
	}
	if cfg.Source.FilterValue == "" {
		cfg.Source.FilterValue = "3"
	}

	if cfg.Files.Cache == "" {
		cfg.Files.Cache = DefaultCacheFile
	}
	if cfg.Files.Checkpoint == "" {
		cfg.Files.Checkpoint = DefaultCheckpointFile
	}
	if cfg.Files.Output == "" {
		cfg.Files.Output = DefaultOutputFile
	}
	if cfg.Files.Failures == "" {
		cfg.Files.Failures = DefaultFailureFile
	}
	if cfg.Files.Log == "" {
		cfg.Files.Log = DefaultLogFile
	}

	if cfg.Prompts.Draft == "" {
		cfg.Prompts.Draft = DefaultDraftPromptTemplate()
	}
	if cfg.Prompts.Critique == "" {
		cfg.Prompts.Critique = DefaultCritiquePromptTemplate()
	}
}
