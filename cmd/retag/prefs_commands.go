package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newPrefsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage stored field and source preferences",
	}
	cmd.AddCommand(newPrefsListCommand(ctx))
	cmd.AddCommand(newPrefsClearCommand(ctx))
	return cmd
}

func newPrefsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			prefs := svc.prefs.Preferences()
			if len(prefs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No preferences stored")
				return nil
			}

			keys := make([]string, 0, len(prefs))
			for key := range prefs {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				field, source, _ := strings.Cut(key, ":")
				rows = append(rows, []string{field, source, prefs[key].String()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Source", "Action"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newPrefsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			count := len(svc.prefs.Preferences())
			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No preferences stored")
				return nil
			}
			if err := svc.prefs.ClearPreferences(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d preferences\n", count)
			return nil
		},
	}
}
