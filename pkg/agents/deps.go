// Package agents contains the concrete agents of the runtime: the
// conversational MetaAgent, the AdminInterpreter, the inbound
// ResponseListener and ResponseInterpreter, and the leaf workers. Agents
// never call each other directly; cross-agent work goes through the
// dispatcher.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/knowledge"
	"github.com/berinia/berinia/pkg/llm"
	"github.com/berinia/berinia/pkg/registry"
)

// Deps is the shared dependency bundle handed to every agent constructor.
// Registry is read-only from the agents' point of view: they consult the
// known-name set, never create instances.
type Deps struct {
	LLM       llm.Service
	Knowledge knowledge.Store
	Dispatch  agent.Dispatcher
	Registry  *registry.AgentRegistry
	Paths     config.AgentsConfig
}

func (d Deps) configPath(name string) string {
	if d.Paths.ConfigDir == "" {
		return ""
	}
	return filepath.Join(d.Paths.ConfigDir, fileStem(name)+".json")
}

func (d Deps) promptPath(name string) string {
	if d.Paths.PromptDir == "" {
		return ""
	}
	return filepath.Join(d.Paths.PromptDir, fileStem(name)+".txt")
}

// generate runs one LLM call, guarding against a missing service so agents
// can degrade instead of panicking.
func (d Deps) generate(ctx context.Context, system, prompt string, tier llm.Tier) (string, error) {
	if d.LLM == nil {
		return "", fmt.Errorf("llm service unavailable")
	}
	resp, err := d.LLM.Generate(ctx, llm.Request{System: system, Prompt: prompt, Tier: tier})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// fileStem converts an agent name to its on-disk document stem:
// MetaAgent -> meta_agent.
func fileStem(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decodeJSONObject extracts the outermost JSON object from an LLM reply,
// tolerating prose or code fences around it.
func decodeJSONObject(text string, out any) error {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(text[start:end+1]), out)
}

// firstString returns the first non-empty string among the given input keys.
func firstString(input map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := input[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
