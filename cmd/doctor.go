package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/doctor"
	"github.com/joescharf/cr/internal/output"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the environment can run a review",
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorRun()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	checks := doctor.NewChecker().Run(
		agent.LoadConfig(),
		anthropicKey() != "",
		cfgPath,
		viper.GetString("db_path"),
		viper.GetString("artifacts_dir"),
	)

	for _, ch := range checks {
		if ch.Passed {
			ui.Success("%-24s %s", ch.Name, ch.Detail)
		} else {
			ui.Error("%-24s %s", ch.Name, ch.Detail)
		}
	}

	fmt.Fprintln(ui.Out)
	if doctor.AllPassed(checks) {
		ui.Info("Status: %s", output.Green("ready"))
		return nil
	}
	ui.Info("Status: %s", output.Red("not ready"))
	return fmt.Errorf("%d check(s) failed", failedCount(checks))
}

func failedCount(checks []doctor.Check) int {
	n := 0
	for _, ch := range checks {
		if !ch.Passed {
			n++
		}
	}
	return n
}
