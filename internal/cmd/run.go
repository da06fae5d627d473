package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskflow/internal/agent"
	"github.com/felixgeelhaar/taskflow/internal/approval"
	"github.com/felixgeelhaar/taskflow/internal/config"
	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/jsonutil"
	"github.com/felixgeelhaar/taskflow/internal/pipeline"
	"github.com/felixgeelhaar/taskflow/internal/plan"
	"github.com/felixgeelhaar/taskflow/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run a task through plan, approval, execute and review",
	Long: `Run a task through the full pipeline.

The planner asks the completion provider for a plan. Plans above low risk are shown
for approval when the approval mode is "prompt". Execution takes a checkpoint of the
working directory first, then the reviewer verifies and explains the result.

Without a goal argument an interactive prompt asks for one.

Examples:
  taskflow run "read config.json"
  taskflow run --approval auto --max-steps 3 "add a README section about testing"
  taskflow run --context files=src/app.ts --json "explain the entry point"
  taskflow run --save-plan .taskflow/plans/tests.json "run the test suite"
  taskflow run --plan .taskflow/plans/tests.json "run the test suite"`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

var runOpts taskFlags

// taskFlags are the task options shared by run and agent.
type taskFlags struct {
	approval     string
	maxSteps     int
	noCheckpoint bool
	context      []string
	jsonOutput   bool
	skipReview   bool
	planFile     string
	savePlan     string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.approval, "approval", "", "approval mode: auto, prompt, never (default from config)")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "maximum number of plan steps (0 uses config)")
	cmd.Flags().BoolVar(&f.noCheckpoint, "no-checkpoint", false, "do not checkpoint the working directory before execution")
	cmd.Flags().StringArrayVar(&f.context, "context", nil, "task context as key=value (repeatable)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the outcome as JSON")
	cmd.Flags().StringVar(&f.planFile, "plan", "", "use the plan in this JSON file instead of asking the provider")
}

func init() {
	runOpts.register(runCmd)
	runCmd.Flags().BoolVar(&runOpts.skipReview, "skip-review", false, "stop after the execute phase")
	runCmd.Flags().StringVar(&runOpts.savePlan, "save-plan", "", "write the plan used by this run to a JSON file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		if !approval.Interactive() {
			return fmt.Errorf("requires a goal argument when not running interactively")
		}
		var err error
		goal, err = tui.PromptForString(ctx, tui.Prompt{
			Message:     "What should taskflow do?",
			Placeholder: "e.g. run the test suite and summarize failures",
			Required:    true,
		})
		if err != nil {
			return err
		}
	}

	task, err := buildTask(goal, runOpts, loaded)
	if err != nil {
		return err
	}

	return withApp(func(a *app) error {
		o := a.orchestrator(approval.ForEnvironment())
		out := o.ExecutePipeline(ctx, task, pipeline.Options{
			SkipReview: runOpts.skipReview || loaded.Pipeline.SkipReview,
		})
		if err := printOutcome(cmd.OutOrStdout(), out, runOpts.jsonOutput); err != nil {
			return err
		}
		if runOpts.savePlan != "" {
			saved, err := savePlanArtifact(runOpts.savePlan, out.Artifacts)
			if err != nil {
				return err
			}
			if saved {
				fmt.Fprintf(cmd.ErrOrStderr(), "plan saved to %s\n", runOpts.savePlan)
			}
		}
		return outcomeError(ctx, out)
	})
}

// buildTask turns flags and configuration into a Task.
func buildTask(goal string, f taskFlags, cfg *config.Config) (agent.Task, error) {
	mode := cfg.Pipeline.ApprovalMode
	if f.approval != "" {
		mode = f.approval
	}
	if !agent.ApprovalMode(mode).Valid() {
		return agent.Task{}, fmt.Errorf("invalid argument %q for --approval: must be auto, prompt or never", mode)
	}

	taskContext, err := parseContext(f.context)
	if err != nil {
		return agent.Task{}, err
	}
	if f.planFile != "" {
		p, err := plan.LoadPlan(f.planFile)
		if err != nil {
			return agent.Task{}, err
		}
		artifact, err := jsonutil.MarshalArtifact(p)
		if err != nil {
			return agent.Task{}, err
		}
		if taskContext == nil {
			taskContext = map[string]string{}
		}
		taskContext["plan"] = artifact
	}

	task := agent.Task{
		Goal:         goal,
		Context:      taskContext,
		ApprovalMode: agent.ApprovalMode(mode),
		MaxSteps:     cfg.Pipeline.MaxSteps,
	}
	if f.maxSteps > 0 {
		task.MaxSteps = f.maxSteps
	}
	if f.noCheckpoint {
		disabled := false
		task.Checkpoint = &disabled
	}
	return task, nil
}

func parseContext(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid argument %q for --context: expected key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// savePlanArtifact writes the first plan found among artifacts to path. It
// reports false when the run produced no plan.
func savePlanArtifact(path string, artifacts []string) (bool, error) {
	for _, a := range artifacts {
		if p, ok := plan.FromArtifact(a); ok {
			return true, plan.SavePlan(p, path)
		}
	}
	return false, nil
}

func printOutcome(w io.Writer, out agent.Outcome, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, s := range out.Steps {
		marker := "•"
		if s.Approved != nil && !*s.Approved {
			marker = "✗"
		}
		fmt.Fprintf(w, "%s [%s] %s\n", marker, s.Phase, s.Action)
		if r := strings.TrimSpace(s.Result); r != "" {
			for _, line := range strings.Split(r, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	if out.Output != "" {
		fmt.Fprintf(w, "\n%s\n", out.Output)
	}
	if out.Success {
		fmt.Fprintln(w, "\n✓ Task completed")
	} else {
		fmt.Fprintf(w, "\n✗ Task failed: %s\n", out.Error)
	}
	return nil
}

// outcomeError converts a failed outcome into a coded error for the exit code.
func outcomeError(ctx context.Context, out agent.Outcome) error {
	if out.Success {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if out.Error == errors.NewApprovalDeclinedError().Message {
		return errors.New(errors.ErrCodePipelineApprovalDenied, out.Error)
	}
	return errors.New(errors.ErrCodePipelineAgentFailed, out.Error)
}
