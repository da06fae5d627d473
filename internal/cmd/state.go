package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/patch"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage working directory checkpoints",
	Long: `Manage working directory checkpoints.

Checkpoints are taken before the execute phase and before every apply. Restoring
one writes back the captured files and removes files that did not exist yet.

Examples:
  taskflow checkpoint list
  taskflow checkpoint restore apply-6f0d...
  taskflow checkpoint delete apply-6f0d...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			cps, err := a.store.List()
			if err != nil {
				return err
			}
			if stateJSON {
				return writeJSON(cmd.OutOrStdout(), cps)
			}
			printCheckpoints(cmd.OutOrStdout(), cps)
			return nil
		})
	},
}

var checkpointRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore the working directory to a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			ok, err := a.store.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewCheckpointNotFoundError(args[0])
			}
			a.metrics.RecordRollback(true)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Restored checkpoint %s\n", args[0])
			return nil
		})
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a checkpoint and prune unreferenced file blobs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			if !a.store.Exists(args[0]) {
				return errors.NewCheckpointNotFoundError(args[0])
			}
			if err := a.store.Delete(args[0]); err != nil {
				return err
			}
			removed, err := a.store.Prune()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted checkpoint %s (%d blobs pruned)\n", args[0], removed)
			return nil
		})
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal [id]",
	Short: "Show applied change sets",
	Long: `Show the journal of successfully applied change sets.

Without an id every entry is listed, newest first. With an id the unified diff of
each file in that change set is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				e, err := a.journal.Read(args[0])
				if err != nil {
					return errors.Wrap(errors.ErrCodeFileNotFound, fmt.Sprintf("journal entry not found: %s", args[0]), err)
				}
				if stateJSON {
					return writeJSON(out, e)
				}
				printJournalEntry(out, e)
				return nil
			}

			entries, err := a.journal.List()
			if err != nil {
				return err
			}
			if stateJSON {
				return writeJSON(out, entries)
			}
			printJournal(out, entries)
			return nil
		})
	},
}

var stateJSON bool

func init() {
	checkpointListCmd.Flags().BoolVar(&stateJSON, "json", false, "print checkpoints as JSON")
	journalCmd.Flags().BoolVar(&stateJSON, "json", false, "print the journal as JSON")

	checkpointCmd.AddCommand(checkpointListCmd, checkpointRestoreCmd, checkpointDeleteCmd)
	rootCmd.AddCommand(checkpointCmd, journalCmd)
}

func printCheckpoints(w io.Writer, cps []*checkpoint.Checkpoint) {
	if len(cps) == 0 {
		fmt.Fprintln(w, "No checkpoints found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFILES\tDESCRIPTION")
	for _, cp := range cps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", cp.ID, cp.CreatedAt.Format("2006-01-02 15:04:05"), len(cp.Files), cp.Description)
	}
	_ = tw.Flush()
}

func printJournal(w io.Writer, entries []*patch.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No applied change sets.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPPLIED\tFILES\t+/-\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t+%d/-%d\t%s\n",
			e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.FilesChanged, e.Insertions, e.Deletions, e.Description)
	}
	_ = tw.Flush()
}

func printJournalEntry(w io.Writer, e *patch.JournalEntry) {
	fmt.Fprintf(w, "%s  %s\n", e.ID, e.Description)
	if e.CheckpointID != "" {
		fmt.Fprintf(w, "checkpoint: %s\n", e.CheckpointID)
	}
	for _, f := range e.Files {
		fmt.Fprintf(w, "\n%s (%s, +%d/-%d)\n%s", f.Path, f.Kind, f.Insertions, f.Deletions, f.Diff)
	}
}
