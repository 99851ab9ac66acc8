package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/llm"
)

const interpretTemplate = `Tu analyses la réponse d'un prospect à une campagne de prospection BerinIA.

Source: %s
Campagne: %s
Message:
%s

Classifie l'intention et réponds avec un unique objet JSON:
{"intent": "positive|negative|neutral|unsubscribe|question", "confidence": 0.0, "suggested_reply": "<texte ou vide>"}`

// ResponseInterpreter classifies a normalized inbound event: is the prospect
// interested, declining, unsubscribing, or asking something. Degrades to a
// neutral classification when the LLM is unreachable.
type ResponseInterpreter struct {
	*agent.BaseAgent
	deps Deps
}

func NewResponseInterpreter(d Deps) (*ResponseInterpreter, error) {
	base, err := agent.NewBaseAgent("ResponseInterpreter", d.configPath("ResponseInterpreter"), d.promptPath("ResponseInterpreter"))
	if err != nil {
		return nil, err
	}
	return &ResponseInterpreter{BaseAgent: base, deps: d}, nil
}

func (r *ResponseInterpreter) Run(ctx context.Context, input map[string]any) map[string]any {
	event, _ := input["event"].(map[string]any)
	if event == nil {
		event = input
	}

	content := firstString(event, "content")
	if content == "" {
		return agent.Errorf("response interpreter requires event content")
	}
	source := firstString(event, "source")
	campaign := firstString(event, "campaign_id")

	prompt := fmt.Sprintf(interpretTemplate, source, campaign, content)
	text, err := r.deps.generate(ctx, "", prompt, llm.TierFast)
	if err != nil {
		slog.Warn("response classification degraded", "error", err)
		return agent.Success(map[string]any{
			"intent":     "neutral",
			"confidence": 0.0,
			"degraded":   true,
		})
	}

	var verdict struct {
		Intent         string  `json:"intent"`
		Confidence     float64 `json:"confidence"`
		SuggestedReply string  `json:"suggested_reply"`
	}
	if err := decodeJSONObject(text, &verdict); err != nil || !validIntent(verdict.Intent) {
		return agent.Success(map[string]any{
			"intent":     "neutral",
			"confidence": 0.0,
			"degraded":   true,
		})
	}

	out := map[string]any{
		"intent":     verdict.Intent,
		"confidence": verdict.Confidence,
	}
	if verdict.SuggestedReply != "" {
		out["suggested_reply"] = verdict.SuggestedReply
	}
	if campaign != "" {
		out["campaign_id"] = campaign
	}
	return agent.Success(out)
}

func validIntent(intent string) bool {
	switch intent {
	case "positive", "negative", "neutral", "unsubscribe", "question":
		return true
	}
	return false
}
