// Package overseer is the central dispatcher: the only component allowed to
// invoke an agent by name. It resolves targets through the registry, applies
// per-agent timeouts, and translates panics into error results so a failing
// agent never crashes the runtime.
package overseer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/logger"
	"github.com/berinia/berinia/pkg/registry"
)

// agentTimeoutKey is the per-agent config key overriding the default
// invocation timeout.
const agentTimeoutKey = "execution_timeout_s"

// Overseer dispatches work to agents. Safe for concurrent use.
type Overseer struct {
	reg            *registry.AgentRegistry
	defaultTimeout time.Duration
}

// New builds an overseer over the given registry.
func New(reg *registry.AgentRegistry, defaultTimeout time.Duration) *Overseer {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	return &Overseer{reg: reg, defaultTimeout: defaultTimeout}
}

// Execute resolves target and runs it with the given input under a timeout.
// Unknown targets yield an error result; the overseer never guesses. Every
// call writes an entry and an exit log record.
func (o *Overseer) Execute(ctx context.Context, target string, input map[string]any) map[string]any {
	if !o.reg.Known(target) {
		slog.Warn("dispatch to unknown agent refused", slog.String(logger.KeyTargetAgent, target))
		return agent.Errorf("unknown agent: %s", target)
	}

	instance, err := o.reg.GetOrCreate(target)
	if err != nil {
		slog.Error("agent resolution failed",
			slog.String(logger.KeyTargetAgent, target), "error", err)
		return agent.Errorf("failed to resolve agent %s: %v", target, err)
	}

	slog.Info("dispatching to agent",
		slog.String(logger.KeyTargetAgent, target),
		slog.String("action", actionOf(input)))

	result := o.invoke(ctx, instance, input)

	status, _ := result["status"].(string)
	slog.Info("agent returned",
		slog.String(logger.KeyTargetAgent, target),
		slog.String("result_status", status))
	return result
}

// Delegate hands a task to a supervisor-category agent, which orchestrates
// its own sub-pipeline. Same result shape as Execute.
func (o *Overseer) Delegate(ctx context.Context, supervisor string, task map[string]any) map[string]any {
	if category, ok := o.reg.CategoryOf(supervisor); ok && category != registry.CategorySupervisor {
		return agent.Errorf("agent %s is not a supervisor (category: %s)", supervisor, category)
	}
	return o.Execute(ctx, supervisor, task)
}

// SystemState snapshots the status of every live agent instance.
func (o *Overseer) SystemState() map[string]agent.Status {
	state := make(map[string]agent.Status)
	for name, instance := range o.reg.Instances() {
		if reporter, ok := instance.(agent.StatusReporter); ok {
			state[name] = reporter.Status()
		} else {
			state[name] = agent.StatusIdle
		}
	}
	return state
}

// invoke runs the agent in its own goroutine so a timeout abandons the call
// rather than blocking the dispatcher. The in-flight work is not interrupted.
func (o *Overseer) invoke(ctx context.Context, instance agent.Agent, input map[string]any) map[string]any {
	timeout := o.timeoutFor(instance)
	reporter, _ := instance.(agent.StatusReporter)
	if reporter != nil {
		reporter.SetStatus(agent.StatusRunning)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan map[string]any, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- map[string]any{
					"status":  "error",
					"message": fmt.Sprintf("agent %s panicked: %v", instance.Name(), r),
					"trace":   string(debug.Stack()),
				}
			}
		}()
		resultCh <- instance.Run(callCtx, input)
	}()

	select {
	case result := <-resultCh:
		if result == nil {
			result = agent.Errorf("agent %s returned no result", instance.Name())
		}
		if reporter != nil {
			if agent.IsError(result) {
				reporter.SetStatus(agent.StatusError)
			} else {
				reporter.SetStatus(agent.StatusIdle)
			}
		}
		return result

	case <-callCtx.Done():
		if reporter != nil {
			reporter.SetStatus(agent.StatusError)
		}
		if ctx.Err() != nil {
			return agent.Errorf("invocation cancelled: %v", ctx.Err())
		}
		return map[string]any{"status": "error", "message": "timeout"}
	}
}

func (o *Overseer) timeoutFor(instance agent.Agent) time.Duration {
	type configReader interface {
		ConfigInt(key string, def int) int
	}
	if cfg, ok := instance.(configReader); ok {
		if s := cfg.ConfigInt(agentTimeoutKey, 0); s > 0 {
			return time.Duration(s) * time.Second
		}
	}
	return o.defaultTimeout
}

func actionOf(input map[string]any) string {
	action, _ := input["action"].(string)
	return action
}
