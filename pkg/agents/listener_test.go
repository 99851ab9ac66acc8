package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
)

func newListener(t *testing.T, dispatch *recordingDispatcher) *ResponseListener {
	t.Helper()
	l, err := NewResponseListener(testDeps(t, &scriptedLLM{}, &staticKnowledge{}, dispatch))
	require.NoError(t, err)
	return l
}

func TestListenerEmailCampaignExtraction(t *testing.T) {
	dispatch := &recordingDispatcher{}
	l := newListener(t, dispatch)

	result := l.Run(context.Background(), map[string]any{
		"source":  "email",
		"from":    "prospect@example.com",
		"to":      "replies+camp7@berinia.io",
		"subject": "Re: votre offre",
		"body":    "Oui, ça m'intéresse.",
	})
	require.False(t, agent.IsError(result))

	event := result["event"].(map[string]any)
	assert.Equal(t, "email", event["source"])
	assert.Equal(t, "prospect@example.com", event["sender"])
	assert.Equal(t, "camp7", event["campaign_id"])
	assert.Equal(t, "Oui, ça m'intéresse.", event["content"])
	extracted := event["extracted_data"].(map[string]any)
	assert.Equal(t, "Re: votre offre", extracted["subject"])
}

func TestListenerEmailWithoutCampaign(t *testing.T) {
	l := newListener(t, &recordingDispatcher{})

	result := l.Run(context.Background(), map[string]any{
		"source": "email",
		"from":   "a@b.c",
		"to":     "contact@berinia.io",
		"body":   "bonjour",
	})
	require.False(t, agent.IsError(result))
	event := result["event"].(map[string]any)
	assert.Nil(t, event["campaign_id"])
}

// The campaign prefix is recovered and the body preserved untouched.
func TestListenerSMSCampaignExtraction(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		campaign string
	}{
		{"hash prefix", "#camp42 yes I'm interested", "camp42"},
		{"bracket prefix", "[camp9] stop please", "camp9"},
		{"no prefix", "just a reply", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newListener(t, &recordingDispatcher{})

			result := l.Run(context.Background(), map[string]any{
				"source": "sms",
				"from":   "+33600000000",
				"to":     "+33700000000",
				"body":   tt.body,
			})
			require.False(t, agent.IsError(result))

			event := result["event"].(map[string]any)
			assert.Equal(t, tt.body, event["content"], "body must be preserved untouched")
			if tt.campaign == "" {
				assert.Nil(t, event["campaign_id"])
			} else {
				assert.Equal(t, tt.campaign, event["campaign_id"])
			}
		})
	}
}

func TestListenerForwardsToInterpreter(t *testing.T) {
	dispatch := &recordingDispatcher{result: agent.Success(map[string]any{"intent": "positive"})}
	l := newListener(t, dispatch)

	result := l.Run(context.Background(), map[string]any{
		"source": "sms",
		"from":   "+33600000000",
		"body":   "#camp1 ok",
	})
	require.False(t, agent.IsError(result))

	require.Len(t, dispatch.Targets, 1)
	assert.Equal(t, "ResponseInterpreter", dispatch.Targets[0])
	forwarded := dispatch.Inputs[0]["event"].(map[string]any)
	assert.Equal(t, "camp1", forwarded["campaign_id"])

	interpretation := result["interpretation"].(map[string]any)
	assert.Equal(t, "positive", interpretation["intent"])
}

func TestListenerRejectsMissingFields(t *testing.T) {
	l := newListener(t, &recordingDispatcher{})

	result := l.Run(context.Background(), map[string]any{"source": "sms", "body": "hi"})
	assert.True(t, agent.IsError(result), "missing sender")

	result = l.Run(context.Background(), map[string]any{"source": "carrier-pigeon"})
	assert.True(t, agent.IsError(result), "unsupported source")
}

func TestListenerCounts(t *testing.T) {
	l := newListener(t, &recordingDispatcher{})

	for i := 0; i < 3; i++ {
		l.Run(context.Background(), map[string]any{"source": "sms", "from": "+336", "body": "x"})
	}
	l.Run(context.Background(), map[string]any{"source": "email", "from": "a@b.c", "to": "d@e.f", "body": "x"})

	counts := l.Counts()
	assert.Equal(t, 3, counts["sms"])
	assert.Equal(t, 1, counts["email"])
}
