package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/output"
)

var (
	compareBranch  string
	compareBase    string
	compareSpec    string
	compareAgents  []string
	compareTimeout time.Duration
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Review with multiple agents and show where they disagree",
	Long: `Run the same review with two or more agents and report every
change they judged differently, ordered by severity. Agreement is
uninteresting; this command is about the deltas.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return compareRun(cmd)
	},
}

func init() {
	compareCmd.Flags().StringVarP(&compareBranch, "branch", "b", "", "Review a branch against its base instead of staged changes")
	compareCmd.Flags().StringVar(&compareBase, "base", "", "Base ref for branch review")
	compareCmd.Flags().StringVarP(&compareSpec, "spec", "s", "", "Specification file to review against")
	compareCmd.Flags().StringArrayVarP(&compareAgents, "agent", "m", nil, "Agent to compare (repeatable, need at least two)")
	compareCmd.Flags().DurationVar(&compareTimeout, "timeout", 0, "Per-agent timeout")
	rootCmd.AddCommand(compareCmd)
}

func compareRun(cmd *cobra.Command) error {
	ctx := cmd.Context()

	agents := compareAgents
	if len(agents) == 0 {
		agents = agent.LoadConfig().Order
	}
	if len(agents) < 2 {
		return fmt.Errorf("compare needs at least two agents, have %d (use --agent)", len(agents))
	}

	repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}

	run, _, err := executeReview(ctx, repo, reviewParams{
		branch:  compareBranch,
		base:    compareBase,
		spec:    compareSpec,
		agents:  agents,
		timeout: compareTimeout,
	})
	if err != nil {
		return err
	}

	if err := persistRun(ctx, run, false); err != nil {
		return err
	}

	for _, f := range run.Failures {
		ui.Warning("%s: %s (%s)", f.Agent, f.Detail, f.Kind)
	}

	table := ui.Table([]string{"AGENT", "GATE", "CHANGES"})
	for _, r := range run.Reviews {
		table.Append([]string{r.Agent, output.VerdictColor(r.Gate.String()), fmt.Sprintf("%d", len(r.Changes))})
	}
	table.Render()
	fmt.Fprintln(ui.Out)

	if len(run.Disagreements) == 0 {
		ui.Success("Agents agree on every change")
		return nil
	}

	ui.Warning("%d disagreement(s):", len(run.Disagreements))
	dtable := ui.Table([]string{"CHANGE", "SEVERITY", "VERDICTS"})
	for _, d := range run.Disagreements {
		dtable.Append([]string{
			d.ChangeID,
			output.SeverityColor(string(d.Severity)),
			verdictList(d.Verdicts),
		})
	}
	dtable.Render()
	return nil
}
