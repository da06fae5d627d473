package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskflow/internal/config"
)

var (
	cfgFile      string
	workdirFlag  string
	logLevelFlag string
	metricsFile  string

	// loaded is the effective configuration, set before any subcommand runs.
	loaded *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Plan, approve and execute coding tasks with reversible multi-file edits",
	Long: `taskflow runs a coding task through a pipeline of phase agents: a planner asks the
completion provider for a plan, risky plans go through an approval gate, the executor
invokes tools inside the working directory behind a checkpoint, and a reviewer verifies
and explains the result.

Multi-file change sets are validated against their dependency graph and applied
atomically: a failed write restores the checkpoint taken before the first write.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if workdirFlag != "" {
			cfg.Workdir = workdirFlag
		}
		if logLevelFlag != "" {
			cfg.Log.Level = logLevelFlag
		}
		if metricsFile != "" {
			cfg.Metrics.File = metricsFile
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		loaded = cfg
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on interrupt.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFile+")")
	rootCmd.PersistentFlags().StringVarP(&workdirFlag, "workdir", "C", "", "working directory for tools and file changes")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
}
