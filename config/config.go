// Package config loads runtime configuration from YAML with environment
// variable overrides for secrets. Every field has a working default so an
// empty file is a valid configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in ModelConfig.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// Config is the root configuration document.
type Config struct {
	AgentName string        `yaml:"agent_name"`
	Model     ModelConfig   `yaml:"model"`
	Trigger   TriggerConfig `yaml:"trigger"`
	Memory    MemoryConfig  `yaml:"memory"`
	Turn      TurnConfig    `yaml:"turn"`
}

// ModelConfig selects and tunes the LLM provider.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// TriggerConfig tunes the room response rules.
type TriggerConfig struct {
	MentionTokens       []string `yaml:"mention_tokens"`
	HelpKeywords        []string `yaml:"help_keywords"`
	LanguageCues        []string `yaml:"language_cues"`
	EmpathyCues         []string `yaml:"empathy_cues"`
	QuestionProbability float64  `yaml:"question_probability"`
	QuestionMinLength   int      `yaml:"question_min_length"`
}

// MemoryConfig tunes the encrypted per-user store.
type MemoryConfig struct {
	// Limit is the retained message window per user.
	Limit int `yaml:"limit"`
	// Path enables the SQLite store when set; empty keeps memory in-process.
	Path string `yaml:"path"`
}

// TurnConfig tunes the agent loop.
type TurnConfig struct {
	MaxRounds     int           `yaml:"max_rounds"`
	Budget        time.Duration `yaml:"-"`
	ToolTimeout   time.Duration `yaml:"-"`
	ContextWindow int           `yaml:"context_window"`

	// Raw string values for YAML unmarshaling
	BudgetRaw      string `yaml:"budget"`
	ToolTimeoutRaw string `yaml:"tool_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		AgentName: "Parley",
		Model: ModelConfig{
			Provider:    ProviderAnthropic,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Trigger: TriggerConfig{
			QuestionProbability: 0.3,
			QuestionMinLength:   10,
		},
		Memory: MemoryConfig{Limit: 20},
		Turn: TurnConfig{
			MaxRounds:     8,
			Budget:        30 * time.Second,
			ToolTimeout:   15 * time.Second,
			ContextWindow: 10,
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults without error; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := parseDurations(&cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations that would misbehave at runtime.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.Trigger.QuestionProbability < 0 || c.Trigger.QuestionProbability > 1 {
		return fmt.Errorf("question_probability %v outside [0,1]", c.Trigger.QuestionProbability)
	}
	if c.Turn.MaxRounds <= 0 {
		return fmt.Errorf("max_rounds must be positive, got %d", c.Turn.MaxRounds)
	}
	if c.Turn.Budget <= 0 {
		return fmt.Errorf("turn budget must be positive, got %v", c.Turn.Budget)
	}
	if c.Memory.Limit <= 0 {
		return fmt.Errorf("memory limit must be positive, got %d", c.Memory.Limit)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Turn.BudgetRaw != "" {
		cfg.Turn.Budget, err = time.ParseDuration(cfg.Turn.BudgetRaw)
		if err != nil {
			return fmt.Errorf("parsing turn budget %q: %w", cfg.Turn.BudgetRaw, err)
		}
	}
	if cfg.Turn.ToolTimeoutRaw != "" {
		cfg.Turn.ToolTimeout, err = time.ParseDuration(cfg.Turn.ToolTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing tool timeout %q: %w", cfg.Turn.ToolTimeoutRaw, err)
		}
	}

	return nil
}

// applyEnv overlays secrets from the environment. Keys in the file are kept
// only when no environment value is set.
func applyEnv(cfg *Config) {
	envKey := map[string]string{
		ProviderAnthropic: "ANTHROPIC_API_KEY",
		ProviderOpenAI:    "OPENAI_API_KEY",
		ProviderGoogle:    "GEMINI_API_KEY",
	}[cfg.Model.Provider]
	if v := os.Getenv(envKey); v != "" {
		cfg.Model.APIKey = v
	}
}
