package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
)

func TestInterpreterClassifiesIntent(t *testing.T) {
	svc := &scriptedLLM{replies: []string{
		`{"intent": "positive", "confidence": 0.92, "suggested_reply": "Merci, je vous propose un créneau."}`,
	}}
	r, err := NewResponseInterpreter(testDeps(t, svc, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := r.Run(context.Background(), map[string]any{
		"event": map[string]any{
			"source":      "sms",
			"campaign_id": "camp42",
			"content":     "#camp42 yes I'm interested",
		},
	})
	require.False(t, agent.IsError(result))
	assert.Equal(t, "positive", result["intent"])
	assert.Equal(t, 0.92, result["confidence"])
	assert.Equal(t, "camp42", result["campaign_id"])
}

func TestInterpreterDegradesToNeutral(t *testing.T) {
	tests := []struct {
		name string
		svc  *scriptedLLM
	}{
		{"llm unreachable", &scriptedLLM{err: fmt.Errorf("connection refused")}},
		{"unparseable reply", &scriptedLLM{replies: []string{"hors sujet"}}},
		{"invalid intent", &scriptedLLM{replies: []string{`{"intent": "enthusiastic"}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResponseInterpreter(testDeps(t, tt.svc, &staticKnowledge{}, &recordingDispatcher{}))
			require.NoError(t, err)

			result := r.Run(context.Background(), map[string]any{
				"event": map[string]any{"source": "sms", "content": "peut-être"},
			})
			require.False(t, agent.IsError(result))
			assert.Equal(t, "neutral", result["intent"])
			assert.Equal(t, true, result["degraded"])
		})
	}
}

func TestInterpreterRequiresContent(t *testing.T) {
	r, err := NewResponseInterpreter(testDeps(t, &scriptedLLM{}, &staticKnowledge{}, &recordingDispatcher{}))
	require.NoError(t, err)

	result := r.Run(context.Background(), map[string]any{"event": map[string]any{"source": "sms"}})
	assert.True(t, agent.IsError(result))
}
