// Package config loads the BerinIA runtime configuration: a YAML document
// with ${VAR:-default} environment expansion, plus .env/.env.local support.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/berinia/berinia/pkg/logger"
)

// Config is the runtime configuration for the agent runtime.
type Config struct {
	Logger    logger.Config   `yaml:"logger" mapstructure:"logger"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Agents    AgentsConfig    `yaml:"agents" mapstructure:"agents"`

	// RecurringTasks are seeded into the scheduler at bootstrap.
	RecurringTasks []SeedTask `yaml:"recurring_tasks" mapstructure:"recurring_tasks"`
}

// LLMConfig selects the LLM provider and the per-tier models.
type LLMConfig struct {
	Provider       string     `yaml:"provider" mapstructure:"provider"`
	APIKey         string     `yaml:"api_key" mapstructure:"api_key"`
	Host           string     `yaml:"host" mapstructure:"host"`
	Models         TierModels `yaml:"models" mapstructure:"models"`
	EmbeddingModel string     `yaml:"embedding_model" mapstructure:"embedding_model"`
	Temperature    float64    `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int        `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutS       int        `yaml:"timeout_s" mapstructure:"timeout_s"`
	MaxRetries     int        `yaml:"max_retries" mapstructure:"max_retries"`
}

// TierModels maps request complexity tiers to model names.
type TierModels struct {
	Fast     string `yaml:"fast" mapstructure:"fast"`
	Standard string `yaml:"standard" mapstructure:"standard"`
	Deep     string `yaml:"deep" mapstructure:"deep"`
}

// KnowledgeConfig selects the knowledge store backend. When QdrantHost is
// empty and no embedder is available, the offline markdown corpus is used.
type KnowledgeConfig struct {
	QdrantHost    string  `yaml:"qdrant_host" mapstructure:"qdrant_host"`
	QdrantPort    int     `yaml:"qdrant_port" mapstructure:"qdrant_port"`
	QdrantKey     string  `yaml:"qdrant_api_key" mapstructure:"qdrant_api_key"`
	PersistPath   string  `yaml:"persist_path" mapstructure:"persist_path"`
	FallbackDir   string  `yaml:"fallback_dir" mapstructure:"fallback_dir"`
	MinScore      float64 `yaml:"min_score" mapstructure:"min_score"`
	VectorSize    int     `yaml:"vector_size" mapstructure:"vector_size"`
	ProbeTimeoutS int     `yaml:"probe_timeout_s" mapstructure:"probe_timeout_s"`
}

// ProbeTimeout bounds the backend liveness check at bootstrap.
func (k *KnowledgeConfig) ProbeTimeout() time.Duration {
	if k.ProbeTimeoutS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(k.ProbeTimeoutS) * time.Second
}

// SchedulerConfig controls the durable task scheduler.
type SchedulerConfig struct {
	TasksFile        string `yaml:"tasks_file" mapstructure:"tasks_file"`
	CheckIntervalS   int    `yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
	DefaultTimeoutS  int    `yaml:"default_timeout_s" mapstructure:"default_timeout_s"`
	DefaultPriority  int    `yaml:"default_priority" mapstructure:"default_priority"`
}

// WebhookConfig controls the HTTP ingress.
type WebhookConfig struct {
	Host            string `yaml:"host" mapstructure:"host"`
	Port            int    `yaml:"port" mapstructure:"port"`
	TwilioAuthToken string `yaml:"twilio_auth_token" mapstructure:"twilio_auth_token"`
	PublicBaseURL   string `yaml:"public_base_url" mapstructure:"public_base_url"`
}

// AgentsConfig locates per-agent config and prompt documents.
type AgentsConfig struct {
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
	PromptDir string `yaml:"prompt_dir" mapstructure:"prompt_dir"`
}

// SeedTask describes a recurring task seeded at bootstrap.
type SeedTask struct {
	ID          string         `yaml:"id" mapstructure:"id"`
	TargetAgent string         `yaml:"target_agent" mapstructure:"target_agent"`
	Action      string         `yaml:"action" mapstructure:"action"`
	Params      map[string]any `yaml:"params" mapstructure:"params"`
	IntervalS   int64          `yaml:"interval_s" mapstructure:"interval_s"`
	Priority    int            `yaml:"priority" mapstructure:"priority"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file, expands environment variables in every
// string value, and decodes the result. Path may be empty, in which case
// defaults plus environment variables apply.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		expanded := ExpandEnvVarsInData(raw)

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(expanded); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Models.Fast == "" {
		c.LLM.Models.Fast = "gpt-4o-mini"
	}
	if c.LLM.Models.Standard == "" {
		c.LLM.Models.Standard = "gpt-4o"
	}
	if c.LLM.Models.Deep == "" {
		c.LLM.Models.Deep = "gpt-4o"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.TimeoutS == 0 {
		c.LLM.TimeoutS = 60
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}

	if c.Knowledge.QdrantPort == 0 {
		c.Knowledge.QdrantPort = 6334
	}
	if c.Knowledge.FallbackDir == "" {
		c.Knowledge.FallbackDir = "data/knowledge"
	}
	if c.Knowledge.MinScore == 0 {
		c.Knowledge.MinScore = 0.3
	}
	if c.Knowledge.VectorSize == 0 {
		c.Knowledge.VectorSize = 1536
	}

	if c.Scheduler.TasksFile == "" {
		c.Scheduler.TasksFile = "data/scheduled_tasks.json"
	}
	if c.Scheduler.CheckIntervalS == 0 {
		c.Scheduler.CheckIntervalS = 1
	}
	if c.Scheduler.DefaultTimeoutS == 0 {
		c.Scheduler.DefaultTimeoutS = 60
	}
	if c.Scheduler.DefaultPriority == 0 {
		c.Scheduler.DefaultPriority = 5
	}

	if c.Webhook.Host == "" {
		c.Webhook.Host = "0.0.0.0"
	}
	if c.Webhook.Port == 0 {
		c.Webhook.Port = 8001
	}

	if c.Agents.ConfigDir == "" {
		c.Agents.ConfigDir = "config/agents"
	}
	if c.Agents.PromptDir == "" {
		c.Agents.PromptDir = "config/prompts"
	}
}

// applyEnv fills credentials from the environment when the config file left
// them empty.
func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = ProviderAPIKey(c.LLM.Provider)
	}
	if c.Knowledge.QdrantHost == "" {
		c.Knowledge.QdrantHost = os.Getenv("QDRANT_HOST")
	}
	if c.Webhook.TwilioAuthToken == "" {
		c.Webhook.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
}

// Validate surfaces fatal configuration errors at bootstrap.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm provider %q requires an API key (set %s)",
				c.LLM.Provider, apiKeyEnvVar(c.LLM.Provider))
		}
	case "ollama":
	default:
		return fmt.Errorf("unsupported llm provider: %s (supported: openai, anthropic, ollama)", c.LLM.Provider)
	}
	return nil
}
