package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/berinia/berinia/pkg/logger"
)

const defaultPrompt = `You are {name}, an agent of the BerinIA outbound prospecting platform.

Respond with a single JSON object and nothing else.

Context:
{context}
`

// BaseAgent carries the lifecycle shared by every agent: a JSON config
// document at a declared path (created with defaults when absent), a prompt
// template (generic default when absent), and a status.
//
// Embed it in concrete agents and override Run.
type BaseAgent struct {
	name       string
	configPath string
	promptPath string

	mu     sync.RWMutex
	config map[string]any
	prompt string
	status Status
}

// NewBaseAgent loads (or default-creates) the agent config and prompt.
func NewBaseAgent(name, configPath, promptPath string) (*BaseAgent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name cannot be empty")
	}

	a := &BaseAgent{
		name:       name,
		configPath: configPath,
		promptPath: promptPath,
		status:     StatusIdle,
	}

	if err := a.loadConfig(); err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	a.loadPrompt()

	return a, nil
}

func (a *BaseAgent) loadConfig() error {
	if a.configPath == "" {
		a.config = map[string]any{"name": a.name}
		return nil
	}

	data, err := os.ReadFile(a.configPath)
	if os.IsNotExist(err) {
		a.config = map[string]any{"name": a.name}
		return a.writeConfig()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("malformed config %s: %w", a.configPath, err)
	}
	if _, ok := cfg["name"]; !ok {
		cfg["name"] = a.name
	}
	a.config = cfg
	return nil
}

func (a *BaseAgent) writeConfig() error {
	if err := os.MkdirAll(filepath.Dir(a.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(a.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(a.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (a *BaseAgent) loadPrompt() {
	if a.promptPath != "" {
		if data, err := os.ReadFile(a.promptPath); err == nil {
			a.prompt = string(data)
			return
		}
	}
	a.prompt = defaultPrompt
}

// Name returns the agent's logical name.
func (a *BaseAgent) Name() string { return a.name }

// Status returns the agent's instantaneous status.
func (a *BaseAgent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// SetStatus updates the agent's status. Only the agent itself and the
// overseer call this.
func (a *BaseAgent) SetStatus(s Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// ConfigValue returns a raw config value.
func (a *BaseAgent) ConfigValue(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.config[key]
	return v, ok
}

// ConfigString returns a string config value, or def when absent.
func (a *BaseAgent) ConfigString(key, def string) string {
	if v, ok := a.ConfigValue(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// ConfigInt returns an integer config value, or def when absent.
// JSON numbers decode as float64, so both forms are accepted.
func (a *BaseAgent) ConfigInt(key string, def int) int {
	if v, ok := a.ConfigValue(key); ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UpdateConfig sets a config key and writes the document back to disk.
func (a *BaseAgent) UpdateConfig(key string, value any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.config[key] = value
	if a.configPath == "" {
		return nil
	}
	return a.writeConfig()
}

// BuildPrompt merges config and ctx (ctx wins) into the prompt template.
// Placeholders inside fenced code blocks are preserved verbatim.
func (a *BaseAgent) BuildPrompt(ctx map[string]any) string {
	a.mu.RLock()
	template := a.prompt
	vars := make(map[string]any, len(a.config)+len(ctx))
	for k, v := range a.config {
		vars[k] = v
	}
	a.mu.RUnlock()

	for k, v := range ctx {
		vars[k] = v
	}
	return RenderPrompt(template, vars)
}

// Speak emits a log record tagged as an agent message. Records tagged this
// way are routed to the agents.log sink in addition to the system log.
func (a *BaseAgent) Speak(message, target string, level slog.Level) {
	attrs := []any{slog.String(logger.KeyAgent, a.name)}
	if target != "" {
		attrs = append(attrs,
			slog.String(logger.KeySenderAgent, a.name),
			slog.String(logger.KeyTargetAgent, target))
	}
	slog.Log(context.Background(), level, message, attrs...)
}
