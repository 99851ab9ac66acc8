package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/berinia/berinia/pkg/agent"
)

// Category is the coarse classification used by bulk creation and bootstrap
// ordering.
type Category string

const (
	CategoryCore          Category = "core"
	CategorySupervisor    Category = "supervisor"
	CategoryScraping      Category = "scraping"
	CategoryQualification Category = "qualification"
	CategoryProspection   Category = "prospection"
	CategoryAnalytics     Category = "analytics"
	CategoryUtility       Category = "utility"
	CategoryIntelligence  Category = "intelligence"
)

// Definition is the immutable metadata record for one agent. The definition
// table is the single source of truth: registry resolution, webhook
// bootstrap and the init command all read it. Construction happens only
// through New.
type Definition struct {
	Name        string
	Category    Category
	Description string
	ConfigPath  string
	PromptPath  string
	New         func() (agent.Agent, error)
}

// AgentRegistry maps logical agent names to live instances, creating them
// lazily from the definition table on first resolution.
type AgentRegistry struct {
	instances *BaseRegistry[agent.Agent]
	defs      *BaseRegistry[Definition]
	group     singleflight.Group
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		instances: NewBaseRegistry[agent.Agent](),
		defs:      NewBaseRegistry[Definition](),
	}
}

// AddDefinitions installs definition records. Duplicate names are rejected.
func (r *AgentRegistry) AddDefinitions(defs ...Definition) error {
	for _, def := range defs {
		if def.New == nil {
			return fmt.Errorf("definition %s has no constructor", def.Name)
		}
		if err := r.defs.Register(def.Name, def); err != nil {
			return fmt.Errorf("failed to add definition: %w", err)
		}
	}
	return nil
}

// Register binds an explicit instance. Used by tests and by bootstrap for
// agents constructed outside the definition table.
func (r *AgentRegistry) Register(name string, instance agent.Agent) error {
	if instance == nil {
		return fmt.Errorf("agent instance cannot be nil")
	}
	return r.instances.Register(name, instance)
}

// Get is a pure lookup; it never creates.
func (r *AgentRegistry) Get(name string) (agent.Agent, bool) {
	return r.instances.Get(name)
}

// GetOrCreate resolves an agent, instantiating it from its definition on
// first use. Concurrent calls for the same name are collapsed so at most one
// instance per name is ever created.
func (r *AgentRegistry) GetOrCreate(name string) (agent.Agent, error) {
	if instance, ok := r.instances.Get(name); ok {
		return instance, nil
	}

	result, err, _ := r.group.Do(name, func() (any, error) {
		if instance, ok := r.instances.Get(name); ok {
			return instance, nil
		}

		def, ok := r.defs.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown agent: %s", name)
		}

		instance, err := def.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %s: %w", name, err)
		}
		if err := r.instances.Register(name, instance); err != nil {
			return nil, err
		}

		slog.Debug("agent created", "agent_name", name, "category", string(def.Category))
		return instance, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(agent.Agent), nil
}

// CreateAll instantiates every defined agent, or only those in the given
// categories. Creation failures are collected, not fatal per agent.
func (r *AgentRegistry) CreateAll(categories ...Category) error {
	wanted := make(map[Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	var failed []string
	for _, def := range r.defs.List() {
		if len(wanted) > 0 && !wanted[def.Category] {
			continue
		}
		if _, err := r.GetOrCreate(def.Name); err != nil {
			slog.Error("agent creation failed", "agent_name", def.Name, "error", err)
			failed = append(failed, def.Name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to create agents: %v", failed)
	}
	return nil
}

// Known reports whether a name is in the definition table or explicitly
// registered.
func (r *AgentRegistry) Known(name string) bool {
	if _, ok := r.defs.Get(name); ok {
		return true
	}
	_, ok := r.instances.Get(name)
	return ok
}

// KnownNames returns the sorted set of resolvable agent names.
func (r *AgentRegistry) KnownNames() []string {
	seen := make(map[string]bool)
	for _, name := range r.defs.Names() {
		seen[name] = true
	}
	for _, name := range r.instances.Names() {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryOf returns the category of a defined agent.
func (r *AgentRegistry) CategoryOf(name string) (Category, bool) {
	def, ok := r.defs.Get(name)
	if !ok {
		return "", false
	}
	return def.Category, true
}

// Instances returns a snapshot of the live instances keyed by name.
func (r *AgentRegistry) Instances() map[string]agent.Agent {
	out := make(map[string]agent.Agent)
	for _, name := range r.instances.Names() {
		if instance, ok := r.instances.Get(name); ok {
			out[name] = instance
		}
	}
	return out
}

// Clear purges instances and definitions. Tests only.
func (r *AgentRegistry) Clear() {
	r.instances.Clear()
	r.defs.Clear()
}
