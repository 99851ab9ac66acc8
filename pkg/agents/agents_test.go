package agents

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/knowledge"
	"github.com/berinia/berinia/pkg/llm"
	"github.com/berinia/berinia/pkg/registry"
)

// scriptedLLM replays canned replies in order and records every prompt.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	Prompts []string
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.Prompts = append(s.Prompts, req.Prompt)
	if len(s.replies) == 0 {
		return &llm.Response{Text: ""}, nil
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return &llm.Response{Text: reply}, nil
}

func (s *scriptedLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("no embeddings in tests")
}

func (s *scriptedLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("no embeddings in tests")
}

func (s *scriptedLLM) Close() error { return nil }

// staticKnowledge answers every search with the same hits.
type staticKnowledge struct {
	hits []knowledge.Hit
}

func (k *staticKnowledge) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	return nil
}

func (k *staticKnowledge) Add(ctx context.Context, collection, text string, metadata map[string]any) error {
	return nil
}

func (k *staticKnowledge) Search(ctx context.Context, collection, query string, limit int) ([]knowledge.Hit, error) {
	return k.hits, nil
}

func (k *staticKnowledge) Close() error { return nil }

// recordingDispatcher captures dispatches and replies with a fixed result.
type recordingDispatcher struct {
	mu      sync.Mutex
	Targets []string
	Inputs  []map[string]any
	result  map[string]any
}

func (d *recordingDispatcher) Execute(ctx context.Context, target string, input map[string]any) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Targets = append(d.Targets, target)
	d.Inputs = append(d.Inputs, input)
	if d.result != nil {
		return d.result
	}
	return agent.Success(nil)
}

type idleAgent struct{ name string }

func (a *idleAgent) Name() string { return a.name }
func (a *idleAgent) Run(ctx context.Context, input map[string]any) map[string]any {
	return agent.Success(nil)
}

func testDeps(t *testing.T, svc llm.Service, store knowledge.Store, dispatch agent.Dispatcher) Deps {
	t.Helper()
	reg := registry.NewAgentRegistry()
	require.NoError(t, reg.AddDefinitions(
		registry.Definition{Name: "MetaAgent", Category: registry.CategoryCore,
			New: func() (agent.Agent, error) { return &idleAgent{name: "MetaAgent"}, nil }},
		registry.Definition{Name: "DatabaseQueryAgent", Category: registry.CategoryUtility,
			New: func() (agent.Agent, error) { return &idleAgent{name: "DatabaseQueryAgent"}, nil }},
		registry.Definition{Name: "ResponseInterpreter", Category: registry.CategoryIntelligence,
			New: func() (agent.Agent, error) { return &idleAgent{name: "ResponseInterpreter"}, nil }},
	))

	return Deps{
		LLM:       svc,
		Knowledge: store,
		Dispatch:  dispatch,
		Registry:  reg,
		Paths: config.AgentsConfig{
			ConfigDir: t.TempDir(),
			PromptDir: t.TempDir(),
		},
	}
}

func TestFileStem(t *testing.T) {
	cases := map[string]string{
		"MetaAgent":          "meta_agent",
		"AdminInterpreter":   "admin_interpreter",
		"EchoAgent":          "echo_agent",
		"DatabaseQueryAgent": "database_query_agent",
	}
	for in, want := range cases {
		if got := fileStem(in); got != want {
			t.Errorf("fileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeJSONObjectTolerant(t *testing.T) {
	var out struct {
		Intent string `json:"intent"`
	}
	text := "Voici ma réponse:\n```json\n{\"intent\": \"positive\"}\n```\nmerci"
	require.NoError(t, decodeJSONObject(text, &out))
	require.Equal(t, "positive", out.Intent)

	require.Error(t, decodeJSONObject("no json here", &out))
}
