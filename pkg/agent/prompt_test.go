package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderPrompt(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]any
		want     string
	}{
		{
			name:     "substitutes known placeholders",
			template: "Hello {name}, you have {count} leads.",
			vars:     map[string]any{"name": "Berin", "count": 3},
			want:     "Hello Berin, you have 3 leads.",
		},
		{
			name:     "preserves unknown placeholders",
			template: "Hello {name}, status {unknown}.",
			vars:     map[string]any{"name": "Berin"},
			want:     "Hello Berin, status {unknown}.",
		},
		{
			name:     "skips fenced code blocks",
			template: "Intro {name}\n```json\n{\"field\": \"{name}\"}\n```\nOutro {name}",
			vars:     map[string]any{"name": "Berin"},
			want:     "Intro Berin\n```json\n{\"field\": \"{name}\"}\n```\nOutro Berin",
		},
		{
			name:     "fence markers themselves untouched",
			template: "```\n{name}\n```",
			vars:     map[string]any{"name": "Berin"},
			want:     "```\n{name}\n```",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderPrompt(tt.template, tt.vars))
		})
	}
}

// Rendering the same template twice with the same variables is stable, and
// fenced regions survive byte for byte.
func TestRenderPromptRoundTrip(t *testing.T) {
	template := "Agent {name}\n```\nexample: {\"x\": \"{placeholder}\"}\n```\nContext: {context}"
	vars := map[string]any{"name": "MetaAgent", "context": "demo"}

	first := RenderPrompt(template, vars)
	second := RenderPrompt(first, vars)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "{\"x\": \"{placeholder}\"}")
}
