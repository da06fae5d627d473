package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskflow/internal/agent"
	"github.com/felixgeelhaar/taskflow/internal/approval"
)

var agentCmd = &cobra.Command{
	Use:   "agent <name> <goal>",
	Short: "Run a single phase agent",
	Long: `Run one phase agent against a fresh execution context, without the approval gate.

Agents: plan, execute, review, debug, refactor, learn, context.

Specialized agents return a JSON report as their artifact; --json prints it along
with the steps.

Examples:
  taskflow agent plan "add input validation to the signup handler"
  taskflow agent debug --context error="nil pointer in handler" "signup crashes"
  taskflow agent context --context files=src/app.ts,src/util.ts "where is config loaded"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAgent,
}

var agentOpts taskFlags

func init() {
	agentOpts.register(agentCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	phase := agent.Phase(args[0])
	goal := strings.TrimSpace(strings.Join(args[1:], " "))

	task, err := buildTask(goal, agentOpts, loaded)
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		out := a.orchestrator(approval.Deny).ExecuteAgent(ctx, phase, task)
		if err := printOutcome(cmd.OutOrStdout(), out, agentOpts.jsonOutput); err != nil {
			return err
		}
		if !agentOpts.jsonOutput {
			for _, artifact := range out.Artifacts {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", artifact)
			}
		}
		return outcomeError(ctx, out)
	})
}
