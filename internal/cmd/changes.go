package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskflow/internal/apply"
	"github.com/felixgeelhaar/taskflow/internal/approval"
	"github.com/felixgeelhaar/taskflow/internal/depgraph"
	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/patch"
	"github.com/felixgeelhaar/taskflow/internal/tui"
	"github.com/felixgeelhaar/taskflow/internal/validate"
)

var applyCmd = &cobra.Command{
	Use:   "apply <changes.json>",
	Short: "Validate and atomically apply a change set",
	Long: `Validate and atomically apply a change set.

The change set is a JSON array of {"path", "originalContent", "newContent"} objects.
An omitted originalContent is read from disk. An empty newContent deletes the file.

Files referenced by more of their peers are written first. With checkpoints enabled
a failed write restores every file touched by the change set.

Examples:
  taskflow apply changes.json --dry-run
  taskflow apply changes.json --yes
  taskflow apply changes.json --force --no-checkpoint`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var validateCmd = &cobra.Command{
	Use:   "validate <changes.json>",
	Short: "Check a change set for broken references, brackets and cycles",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var editCmd = &cobra.Command{
	Use:   "edit <instruction>",
	Short: "Generate, validate and apply a multi-file edit",
	Long: `Ask the completion provider to rewrite the given files, then validate and apply
the result as one change set.

Examples:
  taskflow edit --file src/app.ts --file src/util.ts "move parseArgs into util"
  taskflow edit --file README.md --dry-run "document the apply command"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEdit,
}

var graphCmd = &cobra.Command{
	Use:   "graph <files...>",
	Short: "Show the dependency graph between files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGraph,
}

var changeOpts struct {
	dryRun       bool
	noCheckpoint bool
	force        bool
	yes          bool
	description  string
	files        []string
	jsonOutput   bool
}

func init() {
	applyCmd.Flags().BoolVar(&changeOpts.dryRun, "dry-run", false, "report what would change without writing")
	applyCmd.Flags().BoolVar(&changeOpts.noCheckpoint, "no-checkpoint", false, "do not checkpoint before writing (no rollback)")
	applyCmd.Flags().BoolVar(&changeOpts.force, "force", false, "apply even when validation reports errors")
	applyCmd.Flags().BoolVarP(&changeOpts.yes, "yes", "y", false, "do not ask for confirmation")
	applyCmd.Flags().StringVar(&changeOpts.description, "description", "", "description stored with the checkpoint and journal")
	applyCmd.Flags().BoolVar(&changeOpts.jsonOutput, "json", false, "print the result as JSON")

	validateCmd.Flags().BoolVar(&changeOpts.jsonOutput, "json", false, "print the result as JSON")

	editCmd.Flags().StringArrayVarP(&changeOpts.files, "file", "f", nil, "file to edit (repeatable)")
	editCmd.Flags().BoolVar(&changeOpts.dryRun, "dry-run", false, "report what would change without writing")
	editCmd.Flags().BoolVar(&changeOpts.noCheckpoint, "no-checkpoint", false, "do not checkpoint before writing (no rollback)")
	editCmd.Flags().BoolVar(&changeOpts.force, "force", false, "apply even when validation reports errors")
	editCmd.Flags().BoolVar(&changeOpts.jsonOutput, "json", false, "print the result as JSON")
	_ = editCmd.MarkFlagRequired("file")

	graphCmd.Flags().BoolVar(&changeOpts.jsonOutput, "json", false, "print the graph as JSON")

	rootCmd.AddCommand(applyCmd, validateCmd, editCmd, graphCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	changes, err := patch.LoadChanges(args[0], loaded.Workdir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeApplyInvalid, "failed to load change set", err)
	}

	return withApp(func(a *app) error {
		vres := a.validator().Validate(ctx, changes)
		if !changeOpts.jsonOutput {
			printIssues(out, vres)
		}
		if !vres.Valid && !changeOpts.force {
			return invalidChangeSetError(vres)
		}

		dryRun := changeOpts.dryRun || loaded.Apply.DryRun
		if !dryRun && !changeOpts.yes && approval.Interactive() {
			printDiffs(out, changes)
			ok, err := tui.PromptForConfirmation(ctx, fmt.Sprintf("Apply %d file changes?", len(changes)), false)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewApprovalDeclinedError()
			}
		}

		res := a.engine().Apply(ctx, changes, apply.Options{
			DryRun:      dryRun,
			Checkpoint:  loaded.Apply.Checkpoint && !changeOpts.noCheckpoint,
			Description: describeChanges(changeOpts.description, args[0]),
		})
		if err := printApplyResult(out, res, dryRun, changeOpts.jsonOutput); err != nil {
			return err
		}
		return applyError(res)
	})
}

func runValidate(cmd *cobra.Command, args []string) error {
	changes, err := patch.LoadChanges(args[0], loaded.Workdir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeApplyInvalid, "failed to load change set", err)
	}

	return withApp(func(a *app) error {
		res := a.validator().Validate(cmd.Context(), changes)
		if changeOpts.jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			printIssues(cmd.OutOrStdout(), res)
			if res.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %d changes valid\n", len(changes))
			}
		}
		if !res.Valid {
			return invalidChangeSetError(res)
		}
		return nil
	})
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	instruction := strings.Join(args, " ")

	return withApp(func(a *app) error {
		editor := apply.NewEditor(loaded.Workdir, apply.NewProviderGenerator(a.provider, a.logger), a.validator(), a.engine())
		dryRun := changeOpts.dryRun || loaded.Apply.DryRun
		res, err := editor.Edit(ctx, apply.EditRequest{
			Instruction: instruction,
			Files:       changeOpts.files,
			DryRun:      dryRun,
			Checkpoint:  loaded.Apply.Checkpoint && !changeOpts.noCheckpoint,
			Force:       changeOpts.force,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if changeOpts.jsonOutput {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else {
			printDiffs(out, res.Changes)
			printIssues(out, res.Validation)
		}
		if res.Apply == nil {
			return invalidChangeSetError(res.Validation)
		}
		if !changeOpts.jsonOutput {
			if err := printApplyResult(out, *res.Apply, dryRun, false); err != nil {
				return err
			}
		}
		return applyError(*res.Apply)
	})
}

func runGraph(cmd *cobra.Command, args []string) error {
	files := make([]depgraph.File, 0, len(args))
	for _, p := range args {
		data, err := os.ReadFile(filepath.Join(loaded.Workdir, p))
		if err != nil {
			return errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", p), err)
		}
		files = append(files, depgraph.File{Path: filepath.ToSlash(filepath.Clean(p)), Content: string(data)})
	}

	return withApp(func(a *app) error {
		g := a.builder.Build(files)
		if changeOpts.jsonOutput {
			return writeJSON(cmd.OutOrStdout(), g)
		}
		printGraph(cmd.OutOrStdout(), g)
		return nil
	})
}

func describeChanges(description, source string) string {
	if description != "" {
		return description
	}
	return "apply " + filepath.Base(source)
}

func invalidChangeSetError(res validate.Result) error {
	return errors.New(errors.ErrCodeApplyInvalid, fmt.Sprintf("change set has %d errors", len(res.Errors()))).
		WithSuggestion("Fix the reported issues or re-run with --force")
}

func applyError(res apply.Result) error {
	if res.Success {
		return nil
	}
	err := errors.New(errors.ErrCodeApplyFailed, strings.Join(res.Errors, "; "))
	if len(res.Warnings) > 0 {
		err = err.WithSuggestions(res.Warnings...)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIssues(w io.Writer, res validate.Result) {
	for _, i := range res.Issues {
		icon := "⚠"
		if i.Severity == validate.SeverityError {
			icon = "✗"
		}
		loc := i.File
		if i.Line > 0 {
			loc = fmt.Sprintf("%s:%d", i.File, i.Line)
		}
		fmt.Fprintf(w, "%s %s: %s\n", icon, loc, i.Message)
		if i.Suggestion != "" {
			fmt.Fprintf(w, "    → %s\n", i.Suggestion)
		}
	}
}

func printDiffs(w io.Writer, changes []patch.FileChange) {
	for _, c := range changes {
		if c.Kind() == patch.KindUnchanged {
			continue
		}
		fmt.Fprint(w, patch.UnifiedDiff(c.Path, c))
	}
}

func printApplyResult(w io.Writer, res apply.Result, dryRun, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	verb := "Applied"
	if dryRun {
		verb = "Would apply"
	}
	if res.Success {
		fmt.Fprintf(w, "✓ %s: %d created, %d changed, %d deleted (%s)\n",
			verb, res.Created, res.Changed, res.Deleted, res.Duration.Round(time.Millisecond))
		if res.CheckpointID != "" {
			fmt.Fprintf(w, "  checkpoint: %s\n", res.CheckpointID)
		}
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "✗ %s\n", e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "⚠ %s\n", warn)
	}
	return nil
}

func printGraph(w io.Writer, g *depgraph.Graph) {
	fmt.Fprintf(w, "Files: %d  Edges: %d\n\n", len(g.Nodes), len(g.Edges))
	for _, e := range g.Edges {
		fmt.Fprintf(w, "  %s → %s  (%s, %s)\n", e.From, e.To, e.Type, e.Strength)
	}
	if cycles := g.Cycles(); len(cycles) > 0 {
		fmt.Fprintln(w, "\nCycles:")
		for _, c := range cycles {
			fmt.Fprintf(w, "  %s\n", strings.Join(c, " ↔ "))
		}
	}
}
