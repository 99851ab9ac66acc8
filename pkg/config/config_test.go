package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 6334, cfg.Knowledge.QdrantPort)
	assert.Equal(t, "data/knowledge", cfg.Knowledge.FallbackDir)
	assert.Equal(t, 0.3, cfg.Knowledge.MinScore)
	assert.Equal(t, "data/scheduled_tasks.json", cfg.Scheduler.TasksFile)
	assert.Equal(t, "0.0.0.0", cfg.Webhook.Host)
	assert.Equal(t, 8001, cfg.Webhook.Port)
	assert.Equal(t, "config/agents", cfg.Agents.ConfigDir)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("BERINIA_LLM_KEY", "sk-from-env")
	t.Setenv("BERINIA_WEBHOOK_PORT", "9002")

	path := writeConfig(t, `
llm:
  provider: openai
  api_key: ${BERINIA_LLM_KEY}
webhook:
  host: ${BERINIA_WEBHOOK_HOST:-127.0.0.1}
  port: ${BERINIA_WEBHOOK_PORT}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "127.0.0.1", cfg.Webhook.Host, "default applies when the variable is unset")
	assert.Equal(t, 9002, cfg.Webhook.Port, "expanded numbers are retyped")
}

func TestLoadRecurringTasks(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := writeConfig(t, `
recurring_tasks:
  - id: daily-pivot
    target_agent: PivotStrategyAgent
    action: review
    interval_s: 86400
    priority: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.RecurringTasks, 1)
	seed := cfg.RecurringTasks[0]
	assert.Equal(t, "daily-pivot", seed.ID)
	assert.Equal(t, "PivotStrategyAgent", seed.TargetAgent)
	assert.Equal(t, int64(86400), seed.IntervalS)
	assert.Equal(t, 3, seed.Priority)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"openai without key", func(c *Config) { c.LLM.Provider = "openai"; c.LLM.APIKey = "" }, true},
		{"openai with key", func(c *Config) { c.LLM.Provider = "openai"; c.LLM.APIKey = "sk" }, false},
		{"ollama needs no key", func(c *Config) { c.LLM.Provider = "ollama" }, false},
		{"unsupported provider", func(c *Config) { c.LLM.Provider = "bard" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExpandEnvVarsInData(t *testing.T) {
	t.Setenv("BERINIA_X", "42")

	data := map[string]any{
		"plain":  "text",
		"number": "${BERINIA_X}",
		"nested": map[string]any{"flag": "${BERINIA_FLAG:-true}"},
		"list":   []any{"${BERINIA_X}"},
	}
	out := ExpandEnvVarsInData(data).(map[string]any)

	assert.Equal(t, "text", out["plain"])
	assert.Equal(t, 42, out["number"])
	assert.Equal(t, true, out["nested"].(map[string]any)["flag"])
	assert.Equal(t, 42, out["list"].([]any)[0])
}
