package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent_name: Sage
model:
  provider: openai
  name: gpt-4o-mini
  temperature: 0.2
trigger:
  question_probability: 0.5
  mention_tokens: ["@sage"]
turn:
  max_rounds: 4
  budget: 45s
memory:
  limit: 30
  path: /var/lib/parley/memory.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Sage", cfg.AgentName)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, 0.5, cfg.Trigger.QuestionProbability)
	assert.Equal(t, []string{"@sage"}, cfg.Trigger.MentionTokens)
	assert.Equal(t, 4, cfg.Turn.MaxRounds)
	assert.Equal(t, 45*time.Second, cfg.Turn.Budget)
	assert.Equal(t, 30, cfg.Memory.Limit)

	// Untouched fields keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Turn.ToolTimeout)
	assert.Equal(t, 10, cfg.Trigger.QuestionMinLength)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "model: [this is: not valid\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: anthropic
  api_key: from-file
`)
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model.APIKey)
}

func TestValidate_Rejections(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown provider":     func(c *Config) { c.Model.Provider = "llamacpp" },
		"probability above 1":  func(c *Config) { c.Trigger.QuestionProbability = 1.5 },
		"zero rounds":          func(c *Config) { c.Turn.MaxRounds = 0 },
		"zero budget":          func(c *Config) { c.Turn.Budget = 0 },
		"zero memory limit":    func(c *Config) { c.Memory.Limit = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
