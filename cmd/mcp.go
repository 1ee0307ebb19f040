package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets coding agents request reviews and query run history
natively. Configure with:

  {
    "mcpServers": {
      "cr": { "command": "cr", "args": ["mcp"] }
    }
  }

Available tools: cr_review, cr_list_agents, cr_review_history,
cr_get_run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		srv := mcp.NewServer(s, agent.LoadConfig(), git.NewClient())
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
