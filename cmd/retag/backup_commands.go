package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"retag/internal/metadata"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Inspect and manage backup state",
	}
	cmd.AddCommand(newBackupStatusCommand(ctx))
	cmd.AddCommand(newBackupRestoreCommand(ctx))
	cmd.AddCommand(newBackupHistoryCommand(ctx))
	cmd.AddCommand(newBackupCleanupCommand(ctx))
	return cmd
}

func newBackupStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backup strategy, history size, and open transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			stats, err := svc.backups.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Strategy", string(stats.Strategy)},
				{"Active transactions", fmt.Sprintf("%d", stats.ActiveTransactions)},
				{"Changelog entries", fmt.Sprintf("%d", stats.ChangelogEntries)},
				{"Memory held", formatBytes(stats.MemoryUsedBytes)},
				{"Memory cap", formatBytes(stats.MemoryCapBytes)},
			}
			if stats.CopyFiles > 0 {
				rows = append(rows,
					[]string{"Copy files", fmt.Sprintf("%d", stats.CopyFiles)},
					[]string{"Copy size", formatBytes(stats.CopyBytes)})
			}
			fmt.Fprintln(out, renderTable(nil, rows, []columnAlignment{alignLeft, alignRight}))

			active := svc.backups.Active()
			if len(active) == 0 {
				return nil
			}
			txRows := make([][]string, 0, len(active))
			for _, tx := range active {
				txRows = append(txRows, []string{
					tx.ID[:8],
					filepath.Base(tx.Resource),
					tx.StartedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Transaction", "File", "Started"},
				txRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newBackupRestoreCommand(ctx *commandContext) *cobra.Command {
	var entryID int64
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore a file from its most recent backup record",
		Long: "Rewinds a file to its newest durable backup record, or to a specific\n" +
			"changelog entry chosen with --entry (see \"backup history\" for ids).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			result, err := svc.backups.Restore(cmd.Context(), path, entryID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.CopyPath != "" {
				fmt.Fprintf(out, "Restored %s from backup copy %s\n",
					filepath.Base(path), filepath.Base(result.CopyPath))
				return nil
			}
			entry := result.Entry
			fmt.Fprintf(out, "Restored %s from entry %d (%s)\n",
				filepath.Base(path), entry.ID, entry.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			for _, name := range entry.NewFields.Changed(entry.OldFields) {
				fmt.Fprintf(out, "  %s: %s\n", name, entry.OldFields[name].Text())
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&entryID, "entry", 0, "Changelog entry id to restore (default: most recent)")
	return cmd
}

func newBackupHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <file>",
		Short: "List recorded changes for a file, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.log == nil {
				return fmt.Errorf("no changelog database configured")
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			entries, err := svc.log.History(cmd.Context(), path, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", filepath.Base(path))
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					fmt.Sprintf("%d", entry.ID),
					entry.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					entry.Operation,
					summarizeChange(entry.OldFields, entry.NewFields),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "When", "Operation", "Changes"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to show")
	return cmd
}

func newBackupCleanupCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete backup history older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.backups.Cleanup(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			verb := "Removed"
			if result.DryRun {
				verb = "Would remove"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d changelog entries and %d copy files (%s)\n",
				verb, result.ChangelogEntries, result.CopyFiles, formatBytes(result.BytesFreed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without deleting")
	return cmd
}

func summarizeChange(oldFields, newFields metadata.Fields) string {
	changed := newFields.Changed(oldFields)
	if len(changed) == 0 {
		return "no field changes"
	}
	parts := make([]string, 0, len(changed))
	for _, name := range changed {
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", name, oldFields[name].Text(), newFields[name].Text()))
	}
	return strings.Join(parts, "; ")
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
