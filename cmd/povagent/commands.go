package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/povagent/agent/internal/config"
)

// buildRunCmd creates the "run" command, the sole entry point: it mirrors
// the original CLI's single argparse invocation (main.py) rather than a
// resume/subcommand split, since every run is a fresh, self-contained
// workspace copy.
func buildRunCmd() *cobra.Command {
	var (
		dataset   string
		project   string
		model     string
		budget    float64
		timeout   int
		usePatch  bool
		noFlow    bool
		noBranch  bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the vulnerability-test synthesis pipeline against a project",
		Example: `  # Generate a PoV test for a cwe-bench-java project
  povagent run --project some-project --dataset cwe-bench-java

  # Skip flow analysis and use a higher budget
  povagent run --project some-project --no_flow --budget 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			cfg, err := config.Load(v, "anthropic")
			if err != nil {
				return err
			}
			if cfg.Project == "" {
				return fmt.Errorf("--project is required")
			}
			return runPipeline(context.Background(), cfg)
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "cwe-bench-java", "Dataset to use (cwe-bench-java, primevul)")
	cmd.Flags().StringVar(&project, "project", "", "Project to use (required)")
	cmd.Flags().StringVar(&model, "model", "claude-sonnet-4-5-20250929", "Model to use")
	cmd.Flags().Float64Var(&budget, "budget", config.DefaultBudgetDollars, "Budget in dollars")
	cmd.Flags().IntVar(&timeout, "timeout", config.DefaultTimeoutSecs, "Time budget in seconds")
	cmd.Flags().BoolVar(&usePatch, "use_patch", false, "Use patch file if available")
	cmd.Flags().BoolVar(&noFlow, "no_flow", false, "Disable flow analysis")
	cmd.Flags().BoolVar(&noBranch, "no_branch", false, "Disable branch analysis")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
