package agents

import (
	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/registry"
)

// Definitions is the static agent table: the single source of truth read by
// the registry, the webhook bootstrap and the init command.
func Definitions(d Deps) []registry.Definition {
	def := func(name string, category registry.Category, description string, build func(Deps) (agent.Agent, error)) registry.Definition {
		return registry.Definition{
			Name:        name,
			Category:    category,
			Description: description,
			ConfigPath:  d.configPath(name),
			PromptPath:  d.promptPath(name),
			New:         func() (agent.Agent, error) { return build(d) },
		}
	}

	return []registry.Definition{
		def("MetaAgent", registry.CategoryCore,
			"Conversational front door: maps free text to agent actions and formats results.",
			func(d Deps) (agent.Agent, error) { return NewMetaAgent(d) }),
		def("AdminInterpreter", registry.CategoryCore,
			"Parses administrator commands into validated delegation requests.",
			func(d Deps) (agent.Agent, error) { return NewAdminInterpreter(d) }),
		def("ResponseListener", registry.CategoryCore,
			"Normalizes inbound email and SMS payloads into events.",
			func(d Deps) (agent.Agent, error) { return NewResponseListener(d) }),
		def("ResponseInterpreter", registry.CategoryIntelligence,
			"Classifies prospect replies: interested, declining, unsubscribing or asking.",
			func(d Deps) (agent.Agent, error) { return NewResponseInterpreter(d) }),
		def("DatabaseQueryAgent", registry.CategoryUtility,
			"Answers free-form questions about stored prospecting data.",
			func(d Deps) (agent.Agent, error) { return NewDatabaseQueryAgent(d) }),
		def("PivotStrategyAgent", registry.CategoryAnalytics,
			"Reviews campaign statistics and recommends strategy changes.",
			func(d Deps) (agent.Agent, error) { return NewPivotStrategyAgent(d) }),
		def("EchoAgent", registry.CategoryUtility,
			"Returns its input unchanged. Scheduler self-test target.",
			func(d Deps) (agent.Agent, error) { return NewEchoAgent(d) }),
	}
}
