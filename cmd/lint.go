package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/lint"
	"github.com/joescharf/cr/internal/patch"
)

var lintFix bool

var lintCmd = &cobra.Command{
	Use:   "lint [files...]",
	Short: "Run gofmt and go vet over changed files",
	Long: `Run the local linters over the given files, or over the files
in the staged diff when none are given. Non-Go files are skipped;
missing tools downgrade the check to a skip, not a failure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lintRun(cmd.Context(), args)
	},
}

func init() {
	lintCmd.Flags().BoolVar(&lintFix, "fix", false, "Rewrite files with gofmt -w instead of listing them")
	rootCmd.AddCommand(lintCmd)
}

func lintRun(ctx context.Context, files []string) error {
	repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		diff, err := git.NewClient().StagedDiff(ctx, repo, viper.GetInt("review.context_lines"))
		if err != nil {
			return err
		}
		if strings.TrimSpace(diff) == "" {
			ui.Info("Nothing staged, nothing to lint")
			return nil
		}
		files, err = patch.ChangedFiles(diff)
		if err != nil {
			return err
		}
	}

	checker := lint.NewChecker()
	if lintFix {
		if err := checker.Fix(ctx, repo, files); err != nil {
			return err
		}
		ui.Success("Formatted %d file(s)", len(files))
		return nil
	}

	result := checker.Run(ctx, repo, files)
	if len(result.Skipped) > 0 {
		ui.Warning("skipped: %s", strings.Join(result.Skipped, ", "))
	}
	for _, f := range result.GofmtFiles {
		ui.Warning("gofmt: %s", f)
	}
	if result.VetOutput != "" {
		ui.Warning("go vet:\n%s", result.VetOutput)
	}
	if result.Passed {
		ui.Success("%s", result.Summary())
	} else {
		ui.Error("%s", result.Summary())
	}
	return nil
}
