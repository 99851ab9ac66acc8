package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/knowledge"
)

func TestEchoAgentReturnsInput(t *testing.T) {
	e, err := NewEchoAgent(testDeps(t, &scriptedLLM{}, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := e.Run(context.Background(), map[string]any{"action": "echo", "x": 1})
	assert.Equal(t, map[string]any{"status": "success", "x": 1}, result)
}

func TestDatabaseQueryAgentAnswersFromKnowledge(t *testing.T) {
	svc := &scriptedLLM{replies: []string{"Il y a 3 leads actifs."}}
	store := &staticKnowledge{hits: []knowledge.Hit{
		{Score: 0.8, Content: "leads actifs: 3", Metadata: map[string]any{"source": "leads.md"}},
	}}
	q, err := NewDatabaseQueryAgent(testDeps(t, svc, store, &recordingDispatcher{}))
	require.NoError(t, err)

	result := q.Run(context.Background(), map[string]any{"question": "combien de leads actifs ?"})
	require.False(t, agent.IsError(result))
	assert.Equal(t, "Il y a 3 leads actifs.", result["answer"])
	assert.Equal(t, []string{"leads.md"}, result["sources"])
	assert.Contains(t, svc.Prompts[0], "leads actifs: 3")
}

func TestDatabaseQueryAgentNoData(t *testing.T) {
	q, err := NewDatabaseQueryAgent(testDeps(t, &scriptedLLM{}, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := q.Run(context.Background(), map[string]any{"question": "combien ?"})
	assert.True(t, agent.IsError(result))
}

func TestPivotStrategyAgent(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"recommendation": "pivot", "rationale": "Taux de réponse trop faible."}`,
	}}
	p, err := NewPivotStrategyAgent(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := p.Run(context.Background(), map[string]any{
		"stats": map[string]any{"sent": 500, "replies": 2},
	})
	require.False(t, agent.IsError(result))
	assert.Equal(t, "pivot", result["recommendation"])

	result = p.Run(context.Background(), map[string]any{})
	assert.True(t, agent.IsError(result))
}
