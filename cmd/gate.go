package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	gateBranch  string
	gateBase    string
	gateSpec    string
	gateAgents  []string
	gateTimeout time.Duration
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Review and exit with the gate as status code",
	Long: `Run a review and exit with the aggregate gate as the process
status: 0 for PASS, 1 for CONCERN, 2 for BLOCK.

Diagnostics go to stderr so the command slots into CI pipelines and
pre-push hooks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return gateRun(cmd)
	},
}

func init() {
	gateCmd.Flags().StringVarP(&gateBranch, "branch", "b", "", "Review a branch against its base instead of staged changes")
	gateCmd.Flags().StringVar(&gateBase, "base", "", "Base ref for branch review")
	gateCmd.Flags().StringVarP(&gateSpec, "spec", "s", "", "Specification file to review against")
	gateCmd.Flags().StringArrayVarP(&gateAgents, "agent", "m", nil, "Agent to use (repeatable)")
	gateCmd.Flags().DurationVar(&gateTimeout, "timeout", 0, "Per-agent timeout")
	rootCmd.AddCommand(gateCmd)
}

func gateRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}

	run, _, err := executeReview(ctx, repo, reviewParams{
		branch:  gateBranch,
		base:    gateBase,
		spec:    gateSpec,
		agents:  gateAgents,
		timeout: gateTimeout,
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
	for _, d := range run.Disagreements {
		ui.Warning("disagreement on %s: %s", d.ChangeID, verdictList(d.Verdicts))
	}
	fmt.Fprintf(ui.ErrOut, "gate: %s (run %s)\n", run.Gate, run.ID)

	if code := run.Gate.ExitCode(); code != 0 {
		os.Exit(code)
	}
	return nil
}
