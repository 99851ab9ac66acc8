package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseAgentCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test_agent.json")

	a, err := NewBaseAgent("TestAgent", configPath, "")
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, "TestAgent", cfg["name"])
	assert.Equal(t, "TestAgent", a.Name())
	assert.Equal(t, StatusIdle, a.Status())
}

func TestBaseAgentLoadsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test_agent.json")
	require.NoError(t, os.WriteFile(configPath,
		[]byte(`{"name": "TestAgent", "execution_timeout_s": 30, "mode": "strict"}`), 0o644))

	a, err := NewBaseAgent("TestAgent", configPath, "")
	require.NoError(t, err)

	assert.Equal(t, 30, a.ConfigInt("execution_timeout_s", 0))
	assert.Equal(t, "strict", a.ConfigString("mode", ""))
	assert.Equal(t, 7, a.ConfigInt("missing", 7))
}

func TestBaseAgentUpdateConfigWritesThrough(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "test_agent.json")

	a, err := NewBaseAgent("TestAgent", configPath, "")
	require.NoError(t, err)
	require.NoError(t, a.UpdateConfig("threshold", 0.5))

	reloaded, err := NewBaseAgent("TestAgent", configPath, "")
	require.NoError(t, err)
	v, ok := reloaded.ConfigValue("threshold")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestBaseAgentBuildPromptContextWins(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("agent={name} mode={mode}"), 0o644))
	configPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"name":"A","mode":"config"}`), 0o644))

	a, err := NewBaseAgent("A", configPath, promptPath)
	require.NoError(t, err)

	out := a.BuildPrompt(map[string]any{"mode": "ctx"})
	assert.Equal(t, "agent=A mode=ctx", out)
}

func TestBaseAgentDefaultPromptFallback(t *testing.T) {
	a, err := NewBaseAgent("Fallback", "", filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)

	out := a.BuildPrompt(map[string]any{"context": "hello"})
	assert.Contains(t, out, "Fallback")
	assert.Contains(t, out, "hello")
}

func TestBaseAgentRejectsMalformedConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0o644))

	_, err := NewBaseAgent("Bad", configPath, "")
	assert.Error(t, err)
}
