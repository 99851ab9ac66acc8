package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
)

// An admin command naming an unknown agent is remapped to a valid one and
// the original string preserved.
func TestAdminInterpreterRemapsUnknownAgent(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"action": "count_active", "target_agent": "LeadsAgent", "parameters": {}}`,
	}}
	a, err := NewAdminInterpreter(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := a.Run(context.Background(), map[string]any{
		"message": "Ask the LeadsAgent how many leads are active",
	})
	require.False(t, agent.IsError(result))

	target, _ := result["target_agent"].(string)
	assert.True(t, a.deps.Registry.Known(target), "remapped target must be a known agent")
	assert.Equal(t, "LeadsAgent", result["original_target"])
	// "lead" hints at the utility category.
	assert.Equal(t, "DatabaseQueryAgent", target)
}

func TestAdminInterpreterKeepsKnownTarget(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"action": "count", "target_agent": "DatabaseQueryAgent", "parameters": {"table": "leads"}}`,
	}}
	a, err := NewAdminInterpreter(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := a.Run(context.Background(), map[string]any{"message": "compte les leads"})
	require.False(t, agent.IsError(result))
	assert.Equal(t, "DatabaseQueryAgent", result["target_agent"])
	assert.Nil(t, result["original_target"])
}

func TestAdminInterpreterUnknownIntent(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"non-actionable", `{"action": "", "target_agent": "", "parameters": {}}`},
		{"unparseable", "je ne comprends pas cette commande"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &scriptedLLM{replies: []string{tt.reply}}
			a, err := NewAdminInterpreter(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
			require.NoError(t, err)

			result := a.Run(context.Background(), map[string]any{"message": "blah"})
			require.False(t, agent.IsError(result))
			assert.Equal(t, "unknown", result["intent"])
		})
	}
}

func TestAdminInterpreterLLMDownIsUnknown(t *testing.T) {
	svc := &scriptedLLM{err: fmt.Errorf("connection refused")}
	a, err := NewAdminInterpreter(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := a.Run(context.Background(), map[string]any{"message": "fais quelque chose"})
	require.False(t, agent.IsError(result))
	assert.Equal(t, "unknown", result["intent"])
}

func TestNormalizeAgentName(t *testing.T) {
	cases := map[string]string{
		"LeadScraperAgent": "leadscraper",
		"lead_scraper":     "leadscraper",
		"MetaAgent":        "meta",
	}
	for in, want := range cases {
		if got := normalizeAgentName(in); got != want {
			t.Errorf("normalizeAgentName(%q) = %q, want %q", in, got, want)
		}
	}
}
