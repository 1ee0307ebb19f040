package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/artifacts"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/lint"
	"github.com/joescharf/cr/internal/models"
	"github.com/joescharf/cr/internal/output"
	"github.com/joescharf/cr/internal/patch"
	"github.com/joescharf/cr/internal/report"
	"github.com/joescharf/cr/internal/review"
	"github.com/joescharf/cr/internal/store"
)

var (
	reviewBranch    string
	reviewBase      string
	reviewSpec      string
	reviewAgents    []string
	reviewOutput    string
	reviewTimeout   time.Duration
	reviewLint      bool
	reviewFixBlocks bool
	reviewNoSave    bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review staged changes or a branch with multiple agents",
	Long: `Review a diff with every configured agent in parallel and print
the aggregate verdict.

With no flags the staged diff is reviewed. With --branch the diff is
base...branch, where base defaults to origin/main (then main).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd.Context())
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewBranch, "branch", "b", "", "Review a branch against its base instead of staged changes")
	reviewCmd.Flags().StringVar(&reviewBase, "base", "", "Base ref for branch review (default origin/main, then main)")
	reviewCmd.Flags().StringVarP(&reviewSpec, "spec", "s", "", "Specification file to review against")
	reviewCmd.Flags().StringArrayVarP(&reviewAgents, "agent", "m", nil, "Agent to use (repeatable; default: configured set)")
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "text", "Output format: text, markdown, json")
	reviewCmd.Flags().DurationVar(&reviewTimeout, "timeout", 0, "Per-agent timeout (default from config)")
	reviewCmd.Flags().BoolVar(&reviewLint, "lint", false, "Run gofmt/vet over the changed files first")
	reviewCmd.Flags().BoolVar(&reviewFixBlocks, "fix-blocks", false, "Generate and apply patches for blocked changes")
	reviewCmd.Flags().BoolVar(&reviewNoSave, "no-save", false, "Do not record the run in history")
	rootCmd.AddCommand(reviewCmd)
}

// reviewParams collects everything one review run needs. The gate and
// compare commands reuse it.
type reviewParams struct {
	branch  string
	base    string
	spec    string
	agents  []string
	timeout time.Duration
}

// executeReview builds the diff, runs the orchestrator, and returns the
// aggregate together with the reviewed diff.
func executeReview(ctx context.Context, repo string, p reviewParams) (*models.AggregateReview, string, error) {
	gc := git.NewClient()
	contextLines := viper.GetInt("review.context_lines")

	var diff, subject string
	var err error
	if p.branch == "" {
		subject = "staged"
		diff, err = gc.StagedDiff(ctx, repo, contextLines)
	} else {
		base := git.ResolveBase(ctx, gc, repo, p.base)
		subject = base + "..." + p.branch
		diff, err = gc.BranchDiff(ctx, repo, base, p.branch, contextLines)
	}
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(diff) == "" {
		return nil, "", fmt.Errorf("no changes to review (%s)", subject)
	}

	var spec string
	if p.spec != "" {
		data, err := os.ReadFile(p.spec)
		if err != nil {
			return nil, "", fmt.Errorf("read spec: %w", err)
		}
		spec = string(data)
	}

	cfg := agent.LoadConfig()
	if p.timeout > 0 {
		cfg.Timeout = p.timeout
	}

	orch := review.NewOrchestrator(cfg, repo, gc, runnerFactory(repo))
	run, err := orch.Run(ctx, review.Request{
		Subject:           subject,
		SpecRef:           p.spec,
		Diff:              diff,
		Spec:              spec,
		Agents:            p.agents,
		ObservationRounds: viper.GetInt("review.observation_rounds"),
	})
	if err != nil {
		return nil, "", err
	}
	return run, diff, nil
}

func reviewRun(ctx context.Context) error {
	repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}

	run, diff, err := executeReview(ctx, repo, reviewParams{
		branch:  reviewBranch,
		base:    reviewBase,
		spec:    reviewSpec,
		agents:  reviewAgents,
		timeout: reviewTimeout,
	})
	if err != nil {
		return err
	}

	if reviewLint {
		files, ferr := patch.ChangedFiles(diff)
		if ferr == nil && len(files) > 0 {
			result := lint.NewChecker().Run(ctx, repo, files)
			if s := result.Summary(); s != "" {
				ui.Info("lint: %s", s)
			}
		}
	}

	if err := persistRun(ctx, run, reviewNoSave); err != nil {
		return err
	}

	if err := printRun(run, reviewOutput); err != nil {
		return err
	}

	if reviewFixBlocks {
		return fixBlocked(ctx, repo, run, reviewNoSave)
	}
	return nil
}

// persistRun saves the run unless noSave is set. Either way the run
// ends up with an id so artifacts land in a run-scoped directory.
func persistRun(ctx context.Context, run *models.AggregateReview, noSave bool) error {
	if noSave {
		run.ID = store.NewULID()
	} else {
		s, err := getStore()
		if err != nil {
			return err
		}
		if err := s.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}
	saveArtifacts(run)
	return nil
}

// saveArtifacts writes each agent's raw response and the rendered
// report. Artifact failures are warnings, never fatal.
func saveArtifacts(run *models.AggregateReview) {
	dir, err := artifacts.NewDir(viper.GetString("artifacts_dir"), run.ID)
	if err != nil {
		ui.Warning("artifacts: %v", err)
		return
	}
	for _, r := range run.Reviews {
		if _, err := dir.SaveResponse(r.Agent, r.Raw); err != nil {
			ui.Warning("artifacts: %v", err)
		}
	}
	if _, err := dir.SaveReport(report.Aggregate(run)); err != nil {
		ui.Warning("artifacts: %v", err)
	}
	ui.VerboseLog("artifacts: %s", dir.Root())
}

func printRun(run *models.AggregateReview, format string) error {
	switch format {
	case "json":
		return printRunJSON(run)
	case "markdown":
		fmt.Fprint(ui.Out, report.Aggregate(run))
		return nil
	case "text":
		printRunText(run)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func printRunText(run *models.AggregateReview) {
	ui.Info("Run %s: %s reviewed by %s in %s",
		run.ID, run.Subject, strings.Join(run.Agents, ", "), run.Duration.Round(time.Millisecond))

	for _, f := range run.Failures {
		ui.Warning("%s: %s (%s)", f.Agent, f.Detail, f.Kind)
	}

	table := ui.Table([]string{"AGENT", "GATE", "CHANGES", "SKIPPED"})
	for _, r := range run.Reviews {
		table.Append([]string{
			r.Agent,
			output.VerdictColor(r.Gate.String()),
			fmt.Sprintf("%d", len(r.Changes)),
			fmt.Sprintf("%d", len(r.Skipped)),
		})
	}
	table.Render()

	if len(run.Disagreements) > 0 {
		fmt.Fprintln(ui.Out)
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
	}

	fmt.Fprintln(ui.Out)
	ui.Info("Gate: %s", output.VerdictColor(run.Gate.String()))
}

func verdictList(verdicts map[string]models.Verdict) string {
	parts := make([]string, 0, len(verdicts))
	for _, agentName := range sortedKeys(verdicts) {
		parts = append(parts, agentName+"="+output.VerdictColor(verdicts[agentName].String()))
	}
	return strings.Join(parts, " ")
}

func printRunJSON(run *models.AggregateReview) error {
	type changeJSON struct {
		ChangeID  string `json:"change_id"`
		Verdict   string `json:"verdict"`
		Reasoning string `json:"reasoning,omitempty"`
	}
	type reviewJSON struct {
		Agent   string       `json:"agent"`
		Gate    string       `json:"gate"`
		Changes []changeJSON `json:"changes"`
	}
	type disagreementJSON struct {
		ChangeID string            `json:"change_id"`
		Severity string            `json:"severity"`
		Verdicts map[string]string `json:"verdicts"`
	}
	type failureJSON struct {
		Agent  string `json:"agent"`
		Kind   string `json:"kind"`
		Detail string `json:"detail"`
	}

	out := struct {
		ID            string             `json:"id"`
		Subject       string             `json:"subject"`
		Gate          string             `json:"gate"`
		ExitCode      int                `json:"exit_code"`
		Agents        []string           `json:"agents"`
		Reviews       []reviewJSON       `json:"reviews"`
		Disagreements []disagreementJSON `json:"disagreements"`
		Failures      []failureJSON      `json:"failures"`
	}{
		ID:       run.ID,
		Subject:  run.Subject,
		Gate:     run.Gate.String(),
		ExitCode: run.Gate.ExitCode(),
		Agents:   run.Agents,
	}
	for _, r := range run.Reviews {
		rj := reviewJSON{Agent: r.Agent, Gate: r.Gate.String()}
		for _, cv := range r.Changes {
			rj.Changes = append(rj.Changes, changeJSON{ChangeID: cv.ChangeID, Verdict: cv.Verdict.String(), Reasoning: cv.Reasoning})
		}
		out.Reviews = append(out.Reviews, rj)
	}
	for _, d := range run.Disagreements {
		verdicts := make(map[string]string, len(d.Verdicts))
		for agentName, v := range d.Verdicts {
			verdicts[agentName] = v.String()
		}
		out.Disagreements = append(out.Disagreements, disagreementJSON{ChangeID: d.ChangeID, Severity: string(d.Severity), Verdicts: verdicts})
	}
	for _, f := range run.Failures {
		out.Failures = append(out.Failures, failureJSON{Agent: f.Agent, Kind: string(f.Kind), Detail: f.Detail})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, string(data))
	return nil
}

func sortedKeys(m map[string]models.Verdict) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
