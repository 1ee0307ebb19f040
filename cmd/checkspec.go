package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/parse"
	"github.com/joescharf/cr/internal/review"
)

var (
	checkSpecBranch  string
	checkSpecBase    string
	checkSpecAgent   string
	checkSpecTimeout time.Duration
)

var checkSpecCmd = &cobra.Command{
	Use:   "check-spec <spec-file>",
	Short: "Check whether a diff fulfills a specification",
	Long: `Ask a single agent whether the diff implements everything the
specification requires, and list what is missing as feature requests.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkSpecRun(cmd.Context(), args[0])
	},
}

func init() {
	checkSpecCmd.Flags().StringVarP(&checkSpecBranch, "branch", "b", "", "Check a branch against its base instead of staged changes")
	checkSpecCmd.Flags().StringVar(&checkSpecBase, "base", "", "Base ref for branch diff")
	checkSpecCmd.Flags().StringVarP(&checkSpecAgent, "agent", "m", "", "Agent to ask (default: first configured)")
	checkSpecCmd.Flags().DurationVar(&checkSpecTimeout, "timeout", 0, "Agent timeout")
	rootCmd.AddCommand(checkSpecCmd)
}

func checkSpecRun(ctx context.Context, specFile string) error {
	repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(specFile)
	if err != nil {
		return fmt.Errorf("read spec: %w", err)
	}
	specData := string(data)

	gc := git.NewClient()
	contextLines := viper.GetInt("review.context_lines")

	var diff string
	if checkSpecBranch == "" {
		diff, err = gc.StagedDiff(ctx, repo, contextLines)
	} else {
		base := git.ResolveBase(ctx, gc, repo, checkSpecBase)
		diff, err = gc.BranchDiff(ctx, repo, base, checkSpecBranch, contextLines)
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(diff) == "" {
		return fmt.Errorf("no changes to check")
	}

	cfg := agent.LoadConfig()
	name := checkSpecAgent
	if name == "" {
		if len(cfg.Order) == 0 {
			return fmt.Errorf("no agents configured")
		}
		name = cfg.Order[0]
	}
	defs, _ := cfg.Select([]string{name})
	if len(defs) == 0 {
		return fmt.Errorf("unknown agent: %s", name)
	}

	timeout := checkSpecTimeout
	if timeout <= 0 {
		timeout = cfg.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runner := runnerFactory(repo)(defs[0])
	response, err := runner.Run(runCtx, review.BuildSpecCheckPrompt(diff, specData))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	parsed := parse.Response(name, response)
	if len(parsed.FeatureRequests) > 0 {
		ui.Warning("%d unimplemented requirement(s):", len(parsed.FeatureRequests))
		for _, fr := range parsed.FeatureRequests {
			fmt.Fprintf(ui.Out, "  - %s\n", fr)
		}
		fmt.Fprintln(ui.Out)
	} else {
		ui.Success("No missing requirements reported by %s", name)
		fmt.Fprintln(ui.Out)
	}
	fmt.Fprint(ui.Out, response)
	if !strings.HasSuffix(response, "\n") {
		fmt.Fprintln(ui.Out)
	}
	return nil
}
