package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/knowledge"
)

// The analysis prompt must carry the retrieved knowledge chunks under the
// context heading.
func TestMetaAgentKnowledgeEnrichedPrompt(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"actions": [], "rationale": "question documentaire"}`,
		"Le scheduler ordonne les tâches par échéance.",
	}}
	store := &staticKnowledge{hits: []knowledge.Hit{
		{Score: 0.9, Content: "Le scheduler est une file durable ordonnée par (timestamp, priorité)."},
	}}
	m, err := NewMetaAgent(testDeps(t, svc, store, &recordingDispatcher{}))
	require.NoError(t, err)

	result := m.Run(context.Background(), map[string]any{"message": "explain the scheduler"})
	require.False(t, agent.IsError(result))

	require.NotEmpty(t, svc.Prompts)
	analysisPrompt := svc.Prompts[0]
	assert.Contains(t, analysisPrompt, "INFORMATIONS CONTEXTUELLES PERTINENTES")
	assert.Contains(t, analysisPrompt, "file durable")
	assert.Contains(t, analysisPrompt, "explain the scheduler")
	assert.Contains(t, analysisPrompt, "MetaAgent", "valid agent names are injected")
}

func TestMetaAgentDispatchesPlannedAction(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"actions": [{"agent": "DatabaseQueryAgent", "action": "count", "parameters": {"table": "leads"}}], "rationale": "comptage"}`,
		"Il y a 12 leads actifs.",
	}}
	dispatch := &recordingDispatcher{result: agent.Success(map[string]any{"count": 12})}
	m, err := NewMetaAgent(testDeps(t, svc, &staticKnowledge{}, dispatch))
	require.NoError(t, err)

	result := m.Run(context.Background(), map[string]any{"message": "combien de leads ?"})
	require.False(t, agent.IsError(result))

	require.Len(t, dispatch.Targets, 1)
	assert.Equal(t, "DatabaseQueryAgent", dispatch.Targets[0])
	assert.Equal(t, "count", dispatch.Inputs[0]["action"])
	assert.Equal(t, "leads", dispatch.Inputs[0]["table"])
	assert.Equal(t, "Il y a 12 leads actifs.", result["response"])
	assert.Equal(t, "DatabaseQueryAgent", result["agent_used"])
}

func TestMetaAgentDegradesWhenLLMUnreachable(t *testing.T) {
	svc := &scriptedLLM{err: fmt.Errorf("connection refused")}
	m, err := NewMetaAgent(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := m.Run(context.Background(), map[string]any{"message": "hello"})
	require.False(t, agent.IsError(result), "degradation is a friendly success, not an error")
	assert.NotEmpty(t, result["response"])
}

func TestMetaAgentHandleErrorCategories(t *testing.T) {
	tests := []struct {
		errMsg   string
		category string
	}{
		{"invocation timeout exceeded", "timeout"},
		{"permission denied for table leads", "permission"},
		{"no data found for campaign", "no-data"},
		{"something odd happened", "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			svc := &scriptedLLM{err: fmt.Errorf("llm down")}
			m, err := NewMetaAgent(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
			require.NoError(t, err)

			result := m.Run(context.Background(), map[string]any{
				"action":        "handle_error",
				"error_message": tt.errMsg,
			})
			require.False(t, agent.IsError(result))
			assert.Equal(t, tt.category, result["category"])
			assert.Equal(t, cannedErrorReply(tt.category), result["response"])
		})
	}
}

func TestMetaAgentFailedActionBecomesFriendlyError(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"actions": [{"agent": "DatabaseQueryAgent", "action": "count", "parameters": {}}], "rationale": "x"}`,
		"Désolé, l'opération a expiré.",
	}}
	dispatch := &recordingDispatcher{result: agent.Errorf("timeout")}
	m, err := NewMetaAgent(testDeps(t, svc, &staticKnowledge{}, dispatch))
	require.NoError(t, err)

	result := m.Run(context.Background(), map[string]any{"message": "combien ?"})
	require.False(t, agent.IsError(result))
	assert.Equal(t, "timeout", result["category"])
}

func TestMetaAgentRequiresMessage(t *testing.T) {
	m, err := NewMetaAgent(testDeps(t, &scriptedLLM{}, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := m.Run(context.Background(), map[string]any{})
	assert.True(t, agent.IsError(result))
}
