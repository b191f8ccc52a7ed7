package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const (
	// MaxConcurrency caps the worker pool size.
	MaxConcurrency = 1024

	// MaxTemperature is the upper bound accepted by OpenAI-compatible APIs.
	MaxTemperature = 2.0
)

// Config holds all settings loaded from the TOML configuration file.
type Config struct {
	Model      ModelConfig      `toml:"model"`
	Generation GenerationConfig `toml:"generation"`
	Source     SourceConfig     `toml:"source"`
	Files      FilesConfig      `toml:"files"`
	Prompts    PromptsConfig    `toml:"prompts"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// ModelConfig describes the OpenAI-compatible endpoint used for both
// generation stages.
type ModelConfig struct {
	BaseURL               string  `toml:"base_url"`
	ModelName             string  `toml:"model_name"`
	Temperature           float64 `toml:"temperature"`
	MaxOutputTokens       int     `toml:"max_output_tokens"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RateLimitPerMinute    int     `toml:"rate_limit_per_minute"`
}

// GenerationConfig controls the batch run itself.
type GenerationConfig struct {
	Concurrency    int    `toml:"concurrency"`
	NarrativeField string `toml:"narrative_field"`
}

// SourceConfig locates the input table and the rows to draw from it.
type SourceConfig struct {
	Path           string `toml:"path"`
	SentenceColumn string `toml:"sentence_column"`
	FilterColumn   string `toml:"filter_column"`
	FilterValue    string `toml:"filter_value"`
}

// FilesConfig names the working files a run reads and writes.
type FilesConfig struct {
	Cache      string `toml:"cache"`
	Checkpoint string `toml:"checkpoint"`
	Output     string `toml:"output"`
	Failures   string `toml:"failures"`
	Log        string `toml:"log"`
}

// PromptsConfig carries the two prompt templates. Both are Go
// text/template strings; the draft template sees {{.Sentence}} and
// {{.Field}}, the critique template sees {{.Draft}} and {{.Field}}.
type PromptsConfig struct {
	Draft    string `toml:"draft"`
	Critique string `toml:"critique"`
}

// MetricsConfig enables the optional Prometheus listener when a
// listen address is set.
type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// Secrets holds API keys loaded from environment variables, never from
// the config file.
type Secrets struct {
	APIKeys map[string]string
}

// LoadSecrets reads API keys from the environment.
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	if key := os.Getenv("MOONSHOT_API_KEY"); key != "" {
		secrets.APIKeys["moonshot"] = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	return secrets, nil
}

// GetAPIKey returns the key matching the endpoint's domain, falling
// back to the generic key. An empty result is valid for local servers
// that do not authenticate.
func (s *Secrets) GetAPIKey(baseURL string) string {
	urlLower := strings.ToLower(baseURL)

	switch {
	case strings.Contains(urlLower, "moonshot"):
		if key, ok := s.APIKeys["moonshot"]; ok {
			return key
		}
	case strings.Contains(urlLower, "openai.com"):
		if key, ok := s.APIKeys["openai"]; ok {
			return key
		}
	}

	return s.APIKeys["generic"]
}

// Validate checks the configuration for errors after defaults have
// been applied.
func (c *Config) Validate() error {
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	parsed, err := url.Parse(c.Model.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("model.base_url %q is not a valid URL", c.Model.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("model.base_url must use http or https, got %q", parsed.Scheme)
	}

	if c.Model.ModelName == "" {
		return fmt.Errorf("model.model_name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > MaxTemperature {
		return fmt.Errorf("model.temperature must be between 0 and %.1f, got %.2f", MaxTemperature, c.Model.Temperature)
	}
	if c.Model.MaxOutputTokens < 0 {
		return fmt.Errorf("model.max_output_tokens must not be negative, got %d", c.Model.MaxOutputTokens)
	}
	if c.Model.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("model.request_timeout_seconds must not be negative, got %d", c.Model.RequestTimeoutSeconds)
	}
	if c.Model.RateLimitPerMinute < 1 {
		return fmt.Errorf("model.rate_limit_per_minute must be at least 1, got %d", c.Model.RateLimitPerMinute)
	}

	if c.Generation.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be at least 1, got %d", c.Generation.Concurrency)
	}
	if c.Generation.Concurrency > MaxConcurrency {
		return fmt.Errorf("generation.concurrency must not exceed %d, got %d", MaxConcurrency, c.Generation.Concurrency)
	}
	if c.Generation.NarrativeField == "" {
		return fmt.Errorf("generation.narrative_field is required")
	}

	if c.Source.SentenceColumn == "" {
		return fmt.Errorf("source.sentence_column is required")
	}

	if c.Files.Cache == "" {
		return fmt.Errorf("files.cache is required")
	}
	if c.Files.Checkpoint == "" {
		return fmt.Errorf("files.checkpoint is required")
	}
	if c.Files.Output == "" {
		return fmt.Errorf("files.output is required")
	}
	if c.Files.Failures == "" {
		return fmt.Errorf("files.failures is required")
	}

	if c.Prompts.Draft == "" {
		return fmt.Errorf("prompts.draft is required")
	}
	if c.Prompts.Critique == "" {
		return fmt.Errorf("prompts.critique is required")
	}

	return nil
}
