package agent

import (
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/models"
)

// Kind says how an agent is reached.
type Kind string

const (
	// KindCLI agents are local binaries invoked once per round-trip.
	KindCLI Kind = "cli"
	// KindAPI agents are reached through the Anthropic API.
	KindAPI Kind = "api"
)

// Definition describes one configured review agent.
type Definition struct {
	Name    string
	Kind    Kind
	Command []string // CLI agents: argv, prompt on stdin
	Model   string   // API agents: model identifier
}

// Config is the agent table for one run. It is resolved from viper once
// per run and never mutated afterwards, so concurrent invocations all
// see the same table.
type Config struct {
	Agents  map[string]Definition
	Order   []string // default agent set, in configured order
	Timeout time.Duration
}

// DefaultTimeout bounds a single agent invocation when the config does
// not say otherwise.
const DefaultTimeout = 5 * time.Minute

// LoadConfig resolves the agent table from viper, falling back to the
// built-in claude and gemini CLI agents when nothing is configured.
func LoadConfig() Config {
	timeout := viper.GetDuration("review.timeout")
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	agents := make(map[string]Definition)
	for name := range viper.GetStringMap("agents") {
		key := "agents." + name
		def := Definition{
			Name:    name,
			Kind:    Kind(viper.GetString(key + ".kind")),
			Command: viper.GetStringSlice(key + ".command"),
			Model:   viper.GetString(key + ".model"),
		}
		if def.Kind == "" {
			def.Kind = KindCLI
		}
		agents[name] = def
	}
	if len(agents) == 0 {
		agents = builtinAgents()
	}

	order := viper.GetStringSlice("review.agents")
	if len(order) == 0 {
		order = make([]string, 0, len(agents))
		for name := range agents {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	return Config{Agents: agents, Order: order, Timeout: timeout}
}

// builtinAgents is the compiled-in table used when no config exists.
// The trailing empty argument for gemini makes it read the prompt from
// stdin instead of treating -p as interactive.
func builtinAgents() map[string]Definition {
	return map[string]Definition{
		"claude": {Name: "claude", Kind: KindCLI, Command: []string{"claude", "-p"}},
		"gemini": {Name: "gemini", Kind: KindCLI, Command: []string{"gemini", "-p", ""}},
	}
}

// Select resolves requested agent names against the table, preserving
// request order. Unknown names come back as invocation failures so a
// round can proceed with the agents that do exist. An empty request
// means the configured default set.
func (c Config) Select(names []string) ([]Definition, []models.AgentFailure) {
	if len(names) == 0 {
		names = c.Order
	}

	var defs []Definition
	var failures []models.AgentFailure
	for _, name := range names {
		def, ok := c.Agents[name]
		if !ok {
			failures = append(failures, models.AgentFailure{
				Agent:  name,
				Kind:   models.FailureInvocation,
				Detail: "unknown agent: not in configured agent table",
			})
			continue
		}
		defs = append(defs, def)
	}
	return defs, failures
}
