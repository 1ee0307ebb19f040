package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/output"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List configured review agents and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		return agentsRun()
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func agentsRun() error {
	cfg := agent.LoadConfig()

	table := ui.Table([]string{"NAME", "KIND", "TRANSPORT", "STATUS"})
	for _, name := range cfg.Order {
		def, ok := cfg.Agents[name]
		if !ok {
			table.Append([]string{name, "?", "not defined", output.Red("unknown")})
			continue
		}
		transport := strings.Join(def.Command, " ")
		if def.Kind == agent.KindAPI {
			transport = "model " + def.Model
		}
		table.Append([]string{
			def.Name,
			string(def.Kind),
			transport,
			output.AvailabilityColor(agent.Available(def)),
		})
	}
	table.Render()

	if missing := agent.Missing(orderedDefs(cfg)); len(missing) > 0 {
		ui.Warning("Unavailable: %s", strings.Join(missing, ", "))
	}
	return nil
}

func orderedDefs(cfg agent.Config) []agent.Definition {
	defs := make([]agent.Definition, 0, len(cfg.Order))
	for _, name := range cfg.Order {
		if def, ok := cfg.Agents[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}
