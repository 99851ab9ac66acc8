package overseer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/registry"
)

type fakeAgent struct {
	name string
	run  func(ctx context.Context, input map[string]any) map[string]any
}

func (f *fakeAgent) Name() string { return f.name }
func (f *fakeAgent) Run(ctx context.Context, input map[string]any) map[string]any {
	return f.run(ctx, input)
}

func registryWith(t *testing.T, agents ...*fakeAgent) *registry.AgentRegistry {
	t.Helper()
	r := registry.NewAgentRegistry()
	for _, a := range agents {
		require.NoError(t, r.Register(a.name, a))
	}
	return r
}

func TestExecuteUnknownAgentRefused(t *testing.T) {
	o := New(registryWith(t), time.Second)

	result := o.Execute(context.Background(), "Ghost", nil)
	assert.True(t, agent.IsError(result))
	assert.Contains(t, agent.Message(result), "unknown agent")
}

func TestExecuteSuccess(t *testing.T) {
	echo := &fakeAgent{name: "Echo", run: func(ctx context.Context, input map[string]any) map[string]any {
		return agent.Success(map[string]any{"got": input["x"]})
	}}
	o := New(registryWith(t, echo), time.Second)

	result := o.Execute(context.Background(), "Echo", map[string]any{"x": 42})
	assert.False(t, agent.IsError(result))
	assert.Equal(t, 42, result["got"])
}

func TestExecutePanicBecomesErrorResult(t *testing.T) {
	bomb := &fakeAgent{name: "Bomb", run: func(ctx context.Context, input map[string]any) map[string]any {
		panic("kaboom")
	}}
	o := New(registryWith(t, bomb), time.Second)

	result := o.Execute(context.Background(), "Bomb", nil)
	assert.True(t, agent.IsError(result))
	assert.Contains(t, agent.Message(result), "kaboom")
	assert.NotEmpty(t, result["trace"])
}

func TestExecuteTimeout(t *testing.T) {
	slow := &fakeAgent{name: "Slow", run: func(ctx context.Context, input map[string]any) map[string]any {
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
		}
		return agent.Success(nil)
	}}
	o := New(registryWith(t, slow), 50*time.Millisecond)

	result := o.Execute(context.Background(), "Slow", nil)
	assert.True(t, agent.IsError(result))
	assert.Equal(t, "timeout", agent.Message(result))
}

func TestExecuteNilResultGuarded(t *testing.T) {
	mute := &fakeAgent{name: "Mute", run: func(ctx context.Context, input map[string]any) map[string]any {
		return nil
	}}
	o := New(registryWith(t, mute), time.Second)

	result := o.Execute(context.Background(), "Mute", nil)
	assert.True(t, agent.IsError(result))
}

func TestDelegateRejectsNonSupervisor(t *testing.T) {
	r := registry.NewAgentRegistry()
	require.NoError(t, r.AddDefinitions(registry.Definition{
		Name:     "Worker",
		Category: registry.CategoryUtility,
		New: func() (agent.Agent, error) {
			return &fakeAgent{name: "Worker", run: func(ctx context.Context, input map[string]any) map[string]any {
				return agent.Success(nil)
			}}, nil
		},
	}))
	o := New(r, time.Second)

	result := o.Delegate(context.Background(), "Worker", nil)
	assert.True(t, agent.IsError(result))
	assert.Contains(t, agent.Message(result), "not a supervisor")
}

func TestSystemState(t *testing.T) {
	idle := &fakeAgent{name: "Idle", run: func(ctx context.Context, input map[string]any) map[string]any {
		return agent.Success(nil)
	}}
	o := New(registryWith(t, idle), time.Second)

	state := o.SystemState()
	assert.Equal(t, agent.StatusIdle, state["Idle"])
}
