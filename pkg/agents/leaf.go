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

// EchoAgent returns its input unchanged (minus the action verb). Used by the
// scheduler's self-test and as the simplest possible leaf.
type EchoAgent struct {
	*agent.BaseAgent
}

func NewEchoAgent(d Deps) (*EchoAgent, error) {
	base, err := agent.NewBaseAgent("EchoAgent", d.configPath("EchoAgent"), d.promptPath("EchoAgent"))
	if err != nil {
		return nil, err
	}
	return &EchoAgent{BaseAgent: base}, nil
}

func (e *EchoAgent) Run(ctx context.Context, input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		if k == "action" {
			continue
		}
		out[k] = v
	}
	return agent.Success(out)
}

// DatabaseQueryAgent answers free-form questions about stored prospecting
// data by retrieving matching knowledge chunks and summarizing them.
type DatabaseQueryAgent struct {
	*agent.BaseAgent
	deps Deps
}

func NewDatabaseQueryAgent(d Deps) (*DatabaseQueryAgent, error) {
	base, err := agent.NewBaseAgent("DatabaseQueryAgent", d.configPath("DatabaseQueryAgent"), d.promptPath("DatabaseQueryAgent"))
	if err != nil {
		return nil, err
	}
	return &DatabaseQueryAgent{BaseAgent: base, deps: d}, nil
}

func (q *DatabaseQueryAgent) Run(ctx context.Context, input map[string]any) map[string]any {
	question := firstString(input, "question", "query", "message")
	if question == "" {
		return agent.Errorf("database query agent requires a question")
	}

	var sources []string
	var excerpts strings.Builder
	if q.deps.Knowledge != nil {
		collection := q.ConfigString("collection", knowledge.CollectionKnowledge)
		hits, err := q.deps.Knowledge.Search(ctx, collection, question, 5)
		if err != nil {
			slog.Warn("knowledge lookup failed", "error", err)
		}
		for _, hit := range hits {
			excerpts.WriteString("- ")
			excerpts.WriteString(hit.Content)
			excerpts.WriteString("\n")
			if src, ok := hit.Metadata["source"].(string); ok {
				sources = append(sources, src)
			}
		}
	}
	if excerpts.Len() == 0 {
		return agent.Errorf("no data found for question: %s", question)
	}

	prompt := fmt.Sprintf(`Réponds à la question en t'appuyant uniquement sur les extraits fournis.

Extraits:
%s
Question: %s`, excerpts.String(), question)

	text, err := q.deps.generate(ctx, "", prompt, llm.TierStandard)
	if err != nil {
		return agent.Errorf("failed to answer question: %v", err)
	}
	return agent.Success(map[string]any{
		"answer":  strings.TrimSpace(text),
		"sources": sources,
	})
}

// PivotStrategyAgent reviews campaign statistics and recommends whether to
// keep, adjust or abandon the current targeting.
type PivotStrategyAgent struct {
	*agent.BaseAgent
	deps Deps
}

func NewPivotStrategyAgent(d Deps) (*PivotStrategyAgent, error) {
	base, err := agent.NewBaseAgent("PivotStrategyAgent", d.configPath("PivotStrategyAgent"), d.promptPath("PivotStrategyAgent"))
	if err != nil {
		return nil, err
	}
	return &PivotStrategyAgent{BaseAgent: base, deps: d}, nil
}

func (p *PivotStrategyAgent) Run(ctx context.Context, input map[string]any) map[string]any {
	stats, ok := input["stats"].(map[string]any)
	if !ok || len(stats) == 0 {
		return agent.Errorf("pivot strategy agent requires campaign stats")
	}

	prompt := fmt.Sprintf(`Analyse les statistiques de campagne suivantes et recommande une stratégie.

Statistiques: %v

Réponds avec un unique objet JSON:
{"recommendation": "keep|adjust|pivot", "rationale": "<deux phrases maximum>"}`, stats)

	text, err := p.deps.generate(ctx, "", prompt, llm.TierDeep)
	if err != nil {
		return agent.Errorf("strategy analysis failed: %v", err)
	}

	var verdict struct {
		Recommendation string `json:"recommendation"`
		Rationale      string `json:"rationale"`
	}
	if err := decodeJSONObject(text, &verdict); err != nil {
		return agent.Errorf("unparseable strategy analysis: %v", err)
	}
	return agent.Success(map[string]any{
		"recommendation": verdict.Recommendation,
		"rationale":      verdict.Rationale,
	})
}
