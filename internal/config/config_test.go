package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		Model: ModelConfig{
			BaseURL:               "https://api.moonshot.cn/v1",
			ModelName:             "kimi-latest",
			Temperature:           1.0,
			RequestTimeoutSeconds: 120,
			RateLimitPerMinute:    60,
		},
		Generation: GenerationConfig{
			Concurrency:    5,
			NarrativeField: "inner_monologue",
		},
		Source: SourceConfig{
			Path:           "sentences.csv",
			SentenceColumn: "自我肯定语",
			FilterColumn:   "权重",
			FilterValue:    "3",
		},
		Files: FilesConfig{
			Cache:      "cache.csv",
			Checkpoint: "checkpoint.txt",
			Output:     "narratives.csv",
			Failures:   "fail_data.csv",
			Log:        "generation.log",
		},
		Prompts: PromptsConfig{
			Draft:    "draft {{.Sentence}}",
			Critique: "critique {{.Draft}}",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing base URL",
			mutate:  func(c *Config) { c.Model.BaseURL = "" },
			wantErr: true,
		},
		{
			name:    "base URL without scheme",
			mutate:  func(c *Config) { c.Model.BaseURL = "api.moonshot.cn/v1" },
			wantErr: true,
		},
		{
			name:    "missing model name",
			mutate:  func(c *Config) { c.Model.ModelName = "" },
			wantErr: true,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Model.Temperature = 2.5 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Model.RequestTimeoutSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Generation.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "concurrency over cap",
			mutate:  func(c *Config) { c.Generation.Concurrency = MaxConcurrency + 1 },
			wantErr: true,
		},
		{
			name:    "missing narrative field",
			mutate:  func(c *Config) { c.Generation.NarrativeField = "" },
			wantErr: true,
		},
		{
			name:    "missing sentence column",
			mutate:  func(c *Config) { c.Source.SentenceColumn = "" },
			wantErr: true,
		},
		{
			name:    "missing draft prompt",
			mutate:  func(c *Config) { c.Prompts.Draft = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `[source]
path = "sentences.csv"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.BaseURL != "https://api.moonshot.cn/v1" {
		t.Errorf("Expected default base URL, got %q", cfg.Model.BaseURL)
	}
	if cfg.Model.ModelName != "kimi-latest" {
		t.Errorf("Expected default model name, got %q", cfg.Model.ModelName)
	}
	if cfg.Model.Temperature != 1.0 {
		t.Errorf("Expected default temperature 1.0, got %v", cfg.Model.Temperature)
	}
	if cfg.Generation.Concurrency != 5 {
		t.Errorf("Expected default concurrency 5, got %d", cfg.Generation.Concurrency)
	}
	if cfg.Generation.NarrativeField != "inner_monologue" {
		t.Errorf("Expected default narrative field, got %q", cfg.Generation.NarrativeField)
	}
	if cfg.Source.SentenceColumn != "自我肯定语" {
		t.Errorf("Expected default sentence column, got %q", cfg.Source.SentenceColumn)
	}
	if cfg.Files.Checkpoint != DefaultCheckpointFile {
		t.Errorf("Expected default checkpoint file, got %q", cfg.Files.Checkpoint)
	}
	if !strings.Contains(cfg.Prompts.Draft, "{{.Sentence}}") {
		t.Errorf("Expected default draft template to reference the sentence")
	}
	if !strings.Contains(cfg.Prompts.Critique, "{{.Draft}}") {
		t.Errorf("Expected default critique template to reference the draft")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `[model]
base_url = "http://localhost:8080/v1"
model_name = "local-model"
temperature = 0.4

[generation]
concurrency = 2

[files]
output = "out.csv"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("Expected overridden base URL, got %q", cfg.Model.BaseURL)
	}
	if cfg.Model.Temperature != 0.4 {
		t.Errorf("Expected temperature 0.4, got %v", cfg.Model.Temperature)
	}
	if cfg.Generation.Concurrency != 2 {
		t.Errorf("Expected concurrency 2, got %d", cfg.Generation.Concurrency)
	}
	if cfg.Files.Output != "out.csv" {
		t.Errorf("Expected output out.csv, got %q", cfg.Files.Output)
	}
	// Unset sections still receive defaults.
	if cfg.Files.Failures != DefaultFailureFile {
		t.Errorf("Expected default failure file, got %q", cfg.Files.Failures)
	}
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("model = [broken"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, _, err := Load(path); err == nil {
		t.Error("Expected error for invalid TOML, got nil")
	}
}

func TestLoadSecrets(t *testing.T) {
	if err := os.Setenv("MOONSHOT_API_KEY", "test-moonshot-key"); err != nil {
		t.Fatalf("Failed to set MOONSHOT_API_KEY: %v", err)
	}
	if err := os.Setenv("OPENAI_API_KEY", "test-openai-key"); err != nil {
		t.Fatalf("Failed to set OPENAI_API_KEY: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("MOONSHOT_API_KEY")
		_ = os.Unsetenv("OPENAI_API_KEY")
	}()

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}

	if secrets.APIKeys["moonshot"] != "test-moonshot-key" {
		t.Errorf("Expected Moonshot key to be 'test-moonshot-key', got %s", secrets.APIKeys["moonshot"])
	}
	if secrets.APIKeys["openai"] != "test-openai-key" {
		t.Errorf("Expected OpenAI key to be 'test-openai-key', got %s", secrets.APIKeys["openai"])
	}
}

func TestGetAPIKey(t *testing.T) {
	secrets := &Secrets{
		APIKeys: map[string]string{
			"moonshot": "moonshot-key",
			"openai":   "openai-key",
			"generic":  "generic-key",
		},
	}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "Moonshot URL",
			baseURL: "https://api.moonshot.cn/v1",
			want:    "moonshot-key",
		},
		{
			name:    "OpenAI URL",
			baseURL: "https://api.openai.com/v1",
			want:    "openai-key",
		},
		{
			name:    "Unknown URL falls back to generic",
			baseURL: "http://localhost:8080/v1",
			want:    "generic-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := secrets.GetAPIKey(tt.baseURL)
			if got != tt.want {
				t.Errorf("GetAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetAPIKeyEmptyForLocalServer(t *testing.T) {
	secrets := &Secrets{APIKeys: map[string]string{}}
	if got := secrets.GetAPIKey("http://localhost:8080/v1"); got != "" {
		t.Errorf("Expected empty key for unauthenticated server, got %q", got)
	}
}
