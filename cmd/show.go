package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/cr/internal/report"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun(cmd.Context(), args[0])
	},
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "markdown", "Output format: text, markdown, json")
	rootCmd.AddCommand(showCmd)
}

func showRun(ctx context.Context, runID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	switch showOutput {
	case "json":
		if err := printRunJSON(run); err != nil {
			return err
		}
	case "text":
		printRunText(run)
	case "markdown":
		fmt.Fprint(ui.Out, report.Aggregate(run))
	default:
		return fmt.Errorf("unknown output format: %s", showOutput)
	}

	attempts, err := s.ListPatchAttempts(ctx, runID)
	if err != nil {
		return err
	}
	if len(attempts) > 0 {
		fmt.Fprintln(ui.Out)
		ui.Info("Patch attempts:")
		printAttempts(attempts)
	}
	return nil
}
