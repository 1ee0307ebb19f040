package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/artifacts"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/patch"
)

var fixAgent string

var fixCmd = &cobra.Command{
	Use:   "fix <run-id>",
	Short: "Generate and apply patches for a run's blocked changes",
	Long: `Ask the fix agent for a unified diff per blocked change of a
recorded run. Every diff is validated with a dry run before it may
touch the working tree; patches are applied strictly one at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fixRun(cmd.Context(), args[0])
	},
}

func init() {
	fixCmd.Flags().StringVarP(&fixAgent, "agent", "m", "", "Agent that writes the fixes (default review.fix_agent)")
	rootCmd.AddCommand(fixCmd)
}

func fixRun(ctx context.Context, runID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}
	return fixBlocked(ctx, repo, run, false)
}

// fixBlocked generates patches for every blocked change of run and
// records the attempts. Shared by 'cr fix' and 'cr review --fix-blocks'.
func fixBlocked(ctx context.Context, repo string, run *models.AggregateReview, noSave bool) error {
	blocked := run.BlockedChanges()
	if len(blocked) == 0 {
		ui.Info("No blocked changes in run %s", run.ID)
		return nil
	}

	cfg := agent.LoadConfig()
	name := fixAgent
	if name == "" {
		name = viper.GetString("review.fix_agent")
	}
	defs, _ := cfg.Select([]string{name})
	if len(defs) == 0 {
		return fmt.Errorf("fix agent %q is not configured", name)
	}

	dir, err := artifacts.NewDir(viper.GetString("artifacts_dir"), run.ID)
	if err != nil {
		ui.Warning("artifacts: %v", err)
		dir = nil
	}

	ui.Info("Fixing %d blocked change(s) with %s", len(blocked), name)
	engine := patch.NewEngine(runnerFactory(repo)(defs[0]), name, git.NewClient(), repo, dir, cfg.Timeout)
	attempts := engine.FixAll(ctx, run.ID, blocked)

	if !noSave {
		s, err := getStore()
		if err != nil {
			return err
		}
		if err := s.SavePatchAttempts(ctx, attempts); err != nil {
			return fmt.Errorf("save patch attempts: %w", err)
		}
	}

	printAttempts(attempts)
	return nil
}

func printAttempts(attempts []*models.PatchAttempt) {
	applied := 0
	table := ui.Table([]string{"CHANGE", "STATUS", "DETAIL"})
	for _, a := range attempts {
		detail := a.Error
		if a.Applied {
			detail = a.ArtifactPath
			applied++
		}
		table.Append([]string{a.ChangeID, a.Status(), detail})
	}
	table.Render()

	if applied == len(attempts) {
		ui.Success("%d/%d patches applied", applied, len(attempts))
	} else {
		ui.Warning("%d/%d patches applied", applied, len(attempts))
	}
}
