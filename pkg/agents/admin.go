package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/llm"
	"github.com/berinia/berinia/pkg/registry"
)

const adminInterpretTemplate = `Tu interprètes les commandes d'un administrateur de la plateforme BerinIA.

Agents disponibles: %s

Commande:
%s

Traduis la commande en un unique objet JSON:
{"action": "<verbe>", "target_agent": "<nom d'agent>", "parameters": {}}

Si la commande n'est pas actionnable, renvoie {"action": "", "target_agent": "", "parameters": {}}.`

// DelegationRequest is the validated record an admin command resolves to.
// TargetAgent is always a member of the registry's known set; when the
// command named an unknown agent, the original string is preserved.
type DelegationRequest struct {
	Action         string         `json:"action"`
	TargetAgent    string         `json:"target_agent"`
	Parameters     map[string]any `json:"parameters"`
	OriginalTarget string         `json:"original_target,omitempty"`
}

// AdminInterpreter parses administrator-issued natural-language commands
// into DelegationRequests. Stricter than MetaAgent: the target must resolve
// to a known agent or the request is remapped.
type AdminInterpreter struct {
	*agent.BaseAgent
	deps Deps
}

func NewAdminInterpreter(d Deps) (*AdminInterpreter, error) {
	base, err := agent.NewBaseAgent("AdminInterpreter", d.configPath("AdminInterpreter"), d.promptPath("AdminInterpreter"))
	if err != nil {
		return nil, err
	}
	return &AdminInterpreter{BaseAgent: base, deps: d}, nil
}

func (a *AdminInterpreter) Run(ctx context.Context, input map[string]any) map[string]any {
	message := firstString(input, "message", "command", "text")
	if message == "" {
		return agent.Errorf("admin interpreter requires a message")
	}

	req, err := a.Interpret(ctx, message)
	if err != nil {
		slog.Warn("admin command interpretation failed", "error", err)
		return agent.Success(map[string]any{"intent": "unknown"})
	}
	if req == nil {
		return agent.Success(map[string]any{"intent": "unknown"})
	}

	out := map[string]any{
		"action":       req.Action,
		"target_agent": req.TargetAgent,
		"parameters":   req.Parameters,
	}
	if req.OriginalTarget != "" {
		out["original_target"] = req.OriginalTarget
	}
	return agent.Success(out)
}

// Interpret parses one admin command. A nil request with nil error means the
// command is not actionable.
func (a *AdminInterpreter) Interpret(ctx context.Context, message string) (*DelegationRequest, error) {
	names := ""
	if a.deps.Registry != nil {
		names = strings.Join(a.deps.Registry.KnownNames(), ", ")
	}

	text, err := a.deps.generate(ctx, "", fmt.Sprintf(adminInterpretTemplate, names, message), llm.TierStandard)
	if err != nil {
		return nil, err
	}

	var req DelegationRequest
	if err := decodeJSONObject(text, &req); err != nil {
		return nil, fmt.Errorf("unparseable admin command: %w", err)
	}
	if req.Action == "" || req.TargetAgent == "" {
		return nil, nil
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}

	if a.deps.Registry != nil && !a.deps.Registry.Known(req.TargetAgent) {
		remapped := a.remap(req.TargetAgent, message)
		slog.Warn("admin command named unknown agent, remapping",
			"original_target", req.TargetAgent, "target_agent", remapped)
		req.OriginalTarget = req.TargetAgent
		req.TargetAgent = remapped
	}
	return &req, nil
}

// remap resolves an unknown target to the closest valid agent: first by
// normalized name match, then by a keyword-to-category heuristic, finally
// MetaAgent.
func (a *AdminInterpreter) remap(target, message string) string {
	known := a.deps.Registry.KnownNames()
	wanted := normalizeAgentName(target)

	for _, name := range known {
		candidate := normalizeAgentName(name)
		if candidate == wanted ||
			strings.Contains(candidate, wanted) || strings.Contains(wanted, candidate) {
			return name
		}
	}

	if category, ok := categoryHint(target + " " + message); ok {
		for _, name := range known {
			if c, ok := a.deps.Registry.CategoryOf(name); ok && c == category {
				return name
			}
		}
	}
	return "MetaAgent"
}

// normalizeAgentName lowers the name and strips underscores and the Agent
// suffix so LeadScraper, lead_scraper and LeadScraperAgent all compare equal.
func normalizeAgentName(name string) string {
	s := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	return strings.TrimSuffix(s, "agent")
}

func categoryHint(text string) (registry.Category, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "scrap"):
		return registry.CategoryScraping, true
	case strings.Contains(lower, "qualif"):
		return registry.CategoryQualification, true
	case strings.Contains(lower, "campagne") || strings.Contains(lower, "campaign") || strings.Contains(lower, "prospect"):
		return registry.CategoryProspection, true
	case strings.Contains(lower, "stat") || strings.Contains(lower, "analy") || strings.Contains(lower, "pivot"):
		return registry.CategoryAnalytics, true
	case strings.Contains(lower, "lead") || strings.Contains(lower, "database") || strings.Contains(lower, "donnée") || strings.Contains(lower, "data"):
		return registry.CategoryUtility, true
	}
	return "", false
}
