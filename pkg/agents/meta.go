package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/knowledge"
	"github.com/berinia/berinia/pkg/llm"
)

const knowledgeHeading = "INFORMATIONS CONTEXTUELLES PERTINENTES"

const metaAnalyzeTemplate = `Tu es MetaAgent, la porte d'entrée conversationnelle de la plateforme BerinIA.

Agents disponibles: %s

%sMessage de l'utilisateur:
%s

Traduis le message en actions concrètes. Réponds avec un unique objet JSON:
{"actions": [{"agent": "<nom>", "action": "<verbe>", "parameters": {}}], "rationale": "<une phrase>"}

Si aucune action n'est nécessaire, renvoie {"actions": [], "rationale": "..."} .`

// PlannedAction is one step MetaAgent wants the overseer to run.
type PlannedAction struct {
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// Analysis is the structured outcome of analyzing a free-form message.
type Analysis struct {
	Actions   []PlannedAction `json:"actions"`
	Rationale string          `json:"rationale"`
}

// MetaAgent is the conversational front door: it maps free text to planned
// actions, delegates them through the dispatcher, and rewrites raw agent
// results into human prose.
type MetaAgent struct {
	*agent.BaseAgent
	deps Deps
}

func NewMetaAgent(d Deps) (*MetaAgent, error) {
	base, err := agent.NewBaseAgent("MetaAgent", d.configPath("MetaAgent"), d.promptPath("MetaAgent"))
	if err != nil {
		return nil, err
	}
	return &MetaAgent{BaseAgent: base, deps: d}, nil
}

// Run accepts either {message} for analysis, {action: format_response, ...}
// to rewrite an agent result, or {action: handle_error, ...} to phrase a
// friendly error reply.
func (m *MetaAgent) Run(ctx context.Context, input map[string]any) map[string]any {
	switch firstString(input, "action") {
	case "format_response":
		return m.formatResponse(ctx, input)
	case "handle_error":
		return m.handleError(ctx, input)
	}

	message := firstString(input, "message", "content", "text")
	if message == "" {
		return agent.Errorf("meta agent requires a message or a recognized action")
	}
	return m.handleMessage(ctx, message)
}

// Analyze maps a free-form message to planned actions. The valid agent names
// and any relevant knowledge chunks are injected into the prompt.
func (m *MetaAgent) Analyze(ctx context.Context, message string) (*Analysis, error) {
	names := "(aucun)"
	if m.deps.Registry != nil {
		if known := m.deps.Registry.KnownNames(); len(known) > 0 {
			names = strings.Join(known, ", ")
		}
	}

	prompt := fmt.Sprintf(metaAnalyzeTemplate, names, m.knowledgeContext(ctx, message), message)
	text, err := m.deps.generate(ctx, "", prompt, llm.TierStandard)
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if err := decodeJSONObject(text, &analysis); err != nil {
		return nil, fmt.Errorf("unparseable analysis: %w", err)
	}
	return &analysis, nil
}

// knowledgeContext retrieves chunks relevant to the message and renders them
// as a prompt section. An empty or failed search contributes nothing.
func (m *MetaAgent) knowledgeContext(ctx context.Context, message string) string {
	if m.deps.Knowledge == nil {
		return ""
	}
	hits, err := m.deps.Knowledge.Search(ctx, knowledge.CollectionKnowledge, message, 3)
	if err != nil {
		slog.Warn("knowledge search failed", "error", err)
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(knowledgeHeading)
	b.WriteString(":\n")
	for _, hit := range hits {
		b.WriteString("- ")
		b.WriteString(hit.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m *MetaAgent) handleMessage(ctx context.Context, message string) map[string]any {
	analysis, err := m.Analyze(ctx, message)
	if err != nil {
		slog.Warn("message analysis failed", "error", err)
		return agent.Success(map[string]any{
			"response": "Je ne parviens pas à traiter votre demande pour le moment. Réessayez dans quelques instants.",
		})
	}

	if len(analysis.Actions) == 0 {
		return m.converse(ctx, message, analysis.Rationale)
	}

	planned := analysis.Actions[0]
	if m.deps.Dispatch == nil {
		return agent.Errorf("no dispatcher available for action %s", planned.Action)
	}

	input := make(map[string]any, len(planned.Parameters)+1)
	for k, v := range planned.Parameters {
		input[k] = v
	}
	input["action"] = planned.Action
	result := m.deps.Dispatch.Execute(ctx, planned.Agent, input)

	if agent.IsError(result) {
		return m.Run(ctx, map[string]any{
			"action":            "handle_error",
			"error_message":     agent.Message(result),
			"original_question": message,
		})
	}
	return m.Run(ctx, map[string]any{
		"action":           "format_response",
		"original_message": message,
		"raw_response":     result,
		"agent_used":       planned.Agent,
	})
}

// converse answers a message that needs no agent action.
func (m *MetaAgent) converse(ctx context.Context, message, rationale string) map[string]any {
	prompt := m.BuildPrompt(map[string]any{"context": message})
	text, err := m.deps.generate(ctx, "", prompt, llm.TierFast)
	if err != nil {
		slog.Warn("conversational reply failed", "error", err)
		text = "Je ne peux pas répondre pour le moment. Réessayez dans quelques instants."
	}
	out := map[string]any{"response": strings.TrimSpace(text)}
	if rationale != "" {
		out["rationale"] = rationale
	}
	return agent.Success(out)
}

func (m *MetaAgent) formatResponse(ctx context.Context, input map[string]any) map[string]any {
	original := firstString(input, "original_message")
	agentUsed := firstString(input, "agent_used")
	raw := input["raw_response"]

	prompt := fmt.Sprintf(`Reformule le résultat suivant en une réponse claire et naturelle pour l'utilisateur.

Question initiale: %s
Agent sollicité: %s
Résultat brut: %v

Réponds uniquement avec le texte destiné à l'utilisateur.`, original, agentUsed, raw)

	text, err := m.deps.generate(ctx, "", prompt, llm.TierFast)
	if err != nil {
		slog.Warn("response formatting failed", "error", err)
		text = fmt.Sprintf("Voici le résultat obtenu: %v", raw)
	}
	return agent.Success(map[string]any{
		"response":   strings.TrimSpace(text),
		"agent_used": agentUsed,
	})
}

// handleError phrases a friendly reply for a failed action. The category
// drives the canned fallback used when the LLM itself is unreachable.
func (m *MetaAgent) handleError(ctx context.Context, input map[string]any) map[string]any {
	errMsg := firstString(input, "error_message")
	question := firstString(input, "original_question")
	category := errorCategory(errMsg)

	prompt := fmt.Sprintf(`Une action a échoué. Formule une réponse courte, polie et utile pour l'utilisateur, sans détails techniques.

Question initiale: %s
Erreur interne: %s

Réponds uniquement avec le texte destiné à l'utilisateur.`, question, errMsg)

	text, err := m.deps.generate(ctx, "", prompt, llm.TierFast)
	if err != nil {
		text = cannedErrorReply(category)
	}
	return agent.Success(map[string]any{
		"response": strings.TrimSpace(text),
		"category": category,
	})
}

func errorCategory(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return "timeout"
	case strings.Contains(lower, "permission") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "forbidden"):
		return "permission"
	case strings.Contains(lower, "not found") || strings.Contains(lower, "no data") || strings.Contains(lower, "empty") || strings.Contains(lower, "aucun"):
		return "no-data"
	default:
		return "generic"
	}
}

func cannedErrorReply(category string) string {
	switch category {
	case "timeout":
		return "L'opération a pris trop de temps. Réessayez dans quelques instants."
	case "permission":
		return "Vous n'avez pas les droits nécessaires pour cette opération."
	case "no-data":
		return "Je n'ai trouvé aucune donnée correspondant à votre demande."
	default:
		return "Une erreur est survenue pendant le traitement de votre demande."
	}
}
