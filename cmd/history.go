package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgapi/internal/format"
)

func (sh *shell) historyCommand() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "View the runs of this session",
		Long: `View the runs of this session, newest first. Entries are addressed by
their number in the list or by key.

Examples:
  history
  history show 2
  history load 1
  history delete 3
  history diff 2 1
  history clear`,
		Args: cobra.NoArgs,
		Run:  func(cmd *cobra.Command, args []string) { sh.showHistory = true },
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List previous runs",
		Args:  cobra.NoArgs,
		Run:   func(cmd *cobra.Command, args []string) { sh.showHistory = true },
	}

	showCmd := &cobra.Command{
		Use:   "show <n or key>",
		Short: "Preview a previous run without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sh.sess.ResolveRef(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("request not found: %s: %w", args[0], err)
			}
			rec, err := sh.sess.Lookup(cmd.Context(), key)
			if err != nil {
				return err
			}
			sh.p.HistoryPreview(rec)
			return nil
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load <n or key>",
		Short: "Make a previous run the current response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sh.sess.ResolveRef(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("request not found: %s: %w", args[0], err)
			}
			if _, err := sh.sess.Load(cmd.Context(), key); err != nil {
				return err
			}
			sh.showResult = true
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <n or key>",
		Short: "Delete a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sh.sess.ResolveRef(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("request not found: %s: %w", args[0], err)
			}
			if err := sh.sess.Delete(cmd.Context(), key); err != nil {
				return err
			}
			format.PrintSuccessTo(sh.out, "History entry deleted")
			sh.showHistory = true
			return nil
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff <n or key> <n or key>",
		Short: "Compare the responses of two previous runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, 2)
			for i, ref := range args {
				key, err := sh.sess.ResolveRef(cmd.Context(), ref)
				if err != nil {
					return fmt.Errorf("request not found: %s: %w", ref, err)
				}
				keys[i] = key
			}
			diff, err := sh.sess.CompareHistory(cmd.Context(), keys[0], keys[1])
			if err != nil {
				return err
			}
			sh.p.Diff(diff)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sh.sess.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			format.PrintSuccessTo(sh.out, "History cleared")
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, showCmd, loadCmd, deleteCmd, diffCmd, clearCmd)
	return historyCmd
}
