// Package bootstrap performs the ordered initialization of the runtime:
// environment, logging, configuration, LLM, knowledge store, registry,
// overseer, scheduler (with recurring-task seeding) and webhook server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/berinia/berinia/pkg/agents"
	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/knowledge"
	"github.com/berinia/berinia/pkg/llm"
	"github.com/berinia/berinia/pkg/logger"
	"github.com/berinia/berinia/pkg/overseer"
	"github.com/berinia/berinia/pkg/registry"
	"github.com/berinia/berinia/pkg/scheduler"
	"github.com/berinia/berinia/pkg/webhook"
)

// Options selects which optional subsystems come up.
type Options struct {
	ConfigPath    string
	WithScheduler bool
	WithWebhook   bool

	// WebhookHost and WebhookPort override the configured listen address
	// when set (CLI flags).
	WebhookHost string
	WebhookPort int
}

// Runtime is the assembled system.
type Runtime struct {
	Config    *config.Config
	LLM       llm.Service
	Knowledge knowledge.Store
	Registry  *registry.AgentRegistry
	Overseer  *overseer.Overseer
	Scheduler *scheduler.Scheduler
	Webhook   *webhook.Server

	closeLog func()
}

// Start brings the runtime up in dependency order. Configuration errors are
// fatal; a missing vector store or LLM endpoint degrades instead.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	closeLog, err := logger.Init(cfg.Logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, closeLog: closeLog}
	slog.Info("runtime starting", "llm_provider", cfg.LLM.Provider)

	rt.LLM, err = llm.New(&cfg.LLM)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize llm service: %w", err)
	}

	// Anthropic exposes no embeddings endpoint; the knowledge store then
	// runs on the offline markdown corpus.
	var embedder knowledge.Embedder
	if cfg.LLM.Provider != "anthropic" {
		embedder = rt.LLM
	}
	rt.Knowledge = knowledge.New(&cfg.Knowledge, embedder)
	if err := rt.Knowledge.CreateCollection(ctx, knowledge.CollectionKnowledge, cfg.Knowledge.VectorSize); err != nil {
		slog.Warn("failed to ensure knowledge collection", "error", err)
	}

	rt.Registry = registry.NewAgentRegistry()
	rt.Overseer = overseer.New(rt.Registry, time.Duration(cfg.Scheduler.DefaultTimeoutS)*time.Second)

	deps := agents.Deps{
		LLM:       rt.LLM,
		Knowledge: rt.Knowledge,
		Dispatch:  rt.Overseer,
		Registry:  rt.Registry,
		Paths:     cfg.Agents,
	}
	if err := rt.Registry.AddDefinitions(agents.Definitions(deps)...); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.Registry.CreateAll(); err != nil {
		slog.Warn("some agents failed to start", "error", err)
	}

	rt.Scheduler, err = scheduler.New(cfg.Scheduler, rt.executeTask)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	rt.seedRecurringTasks()
	if opts.WithScheduler {
		rt.Scheduler.Start(ctx)
	}

	if opts.WithWebhook {
		if opts.WebhookHost != "" {
			cfg.Webhook.Host = opts.WebhookHost
		}
		if opts.WebhookPort != 0 {
			cfg.Webhook.Port = opts.WebhookPort
		}
		rt.Webhook = webhook.New(cfg.Webhook, rt.Overseer, cfg.Logger.Directory())
	}

	slog.Info("runtime ready", "agents", len(rt.Registry.KnownNames()))
	return rt, nil
}

// executeTask adapts scheduler task data to an overseer dispatch.
func (rt *Runtime) executeTask(ctx context.Context, data scheduler.TaskData) map[string]any {
	input := make(map[string]any, len(data.Params)+1)
	for k, v := range data.Params {
		input[k] = v
	}
	if data.Action != "" {
		input["action"] = data.Action
	}
	return rt.Overseer.Execute(ctx, data.TargetAgent, input)
}

// seedRecurringTasks installs the configured recurring tasks. Tasks that
// survived a previous run keep their schedule; duplicates are left alone.
func (rt *Runtime) seedRecurringTasks() {
	for _, seed := range rt.Config.RecurringTasks {
		if seed.TargetAgent == "" || seed.IntervalS <= 0 {
			slog.Warn("skipping malformed recurring task", "task_id", seed.ID)
			continue
		}

		interval := time.Duration(seed.IntervalS) * time.Second
		opts := scheduler.Options{
			TaskID:    seed.ID,
			Recurring: true,
			Interval:  interval,
		}
		if seed.Priority != 0 {
			p := seed.Priority
			opts.Priority = &p
		}

		_, err := rt.Scheduler.Schedule(scheduler.TaskData{
			TargetAgent: seed.TargetAgent,
			Action:      seed.Action,
			Params:      seed.Params,
		}, time.Now().Add(interval), opts)
		if err != nil {
			slog.Debug("recurring task already present", "task_id", seed.ID, "detail", err)
		}
	}
}

// Close tears the runtime down in reverse order.
func (rt *Runtime) Close() {
	if rt.Scheduler != nil {
		rt.Scheduler.Stop()
	}
	if rt.Webhook != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rt.Webhook.Shutdown(shutdownCtx); err != nil {
			slog.Warn("webhook shutdown incomplete", "error", err)
		}
		cancel()
	}
	if rt.Knowledge != nil {
		if err := rt.Knowledge.Close(); err != nil {
			slog.Warn("knowledge store close failed", "error", err)
		}
	}
	if rt.LLM != nil {
		_ = rt.LLM.Close()
	}
	slog.Info("runtime stopped")
	if rt.closeLog != nil {
		rt.closeLog()
	}
}
