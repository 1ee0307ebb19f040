package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/agent"
	"github.com/joescharf/cr/internal/git"
	"github.com/joescharf/cr/internal/llm"
	"github.com/joescharf/cr/internal/output"
	"github.com/joescharf/cr/internal/review"
	"github.com/joescharf/cr/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose  bool
	repoFlag string
)

var rootCmd = &cobra.Command{
	Use:   "cr",
	Short: "Multi-agent code review orchestrator",
	Long: `cr fans a diff out to multiple AI review agents in parallel,
parses their verdicts, and aggregates them into a single gate:
PASS, CONCERN, or BLOCK. Disagreements between agents are surfaced
rather than averaged away.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "C", "", "Repository to review (default: repo containing cwd)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/cr/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "cr")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CR")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "cr")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "cr.db"))
	viper.SetDefault("artifacts_dir", filepath.Join(defaultConfigDir, "artifacts"))
	viper.SetDefault("review.agents", []string{})
	viper.SetDefault("review.timeout", agent.DefaultTimeout)
	viper.SetDefault("review.context_lines", git.DefaultContextLines)
	viper.SetDefault("review.observation_rounds", 3)
	viper.SetDefault("review.fix_agent", "claude")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-sonnet-4-5")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Store is initialized lazily so config/version/agents commands run
	// without touching the database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// resolveRepo returns the root of the repository under review: the
// --repo flag if given, otherwise the repo containing the cwd.
func resolveRepo(ctx context.Context) (string, error) {
	gc := git.NewClient()
	if repoFlag != "" {
		root, err := gc.RepoRoot(ctx, repoFlag)
		if err != nil {
			return "", fmt.Errorf("not a git repository: %s", repoFlag)
		}
		return root, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := gc.RepoRoot(ctx, cwd)
	if err != nil {
		return "", fmt.Errorf("not inside a git repository (use --repo)")
	}
	return root, nil
}

// anthropicKey returns the configured Anthropic API key, config file
// first, then the standard environment variable.
func anthropicKey() string {
	if key := viper.GetString("anthropic.api_key"); key != "" {
		return key
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// runnerFactory wires agent definitions to transports: CLI agents run
// as subprocesses in the reviewed repo, API agents go through the
// Anthropic client.
func runnerFactory(repo string) review.RunnerFactory {
	return func(def agent.Definition) agent.Runner {
		if def.Kind == agent.KindAPI {
			return llm.NewRunner(llm.NewClient(anthropicKey()), def.Model)
		}
		return agent.NewCLIRunner(def, repo)
	}
}
