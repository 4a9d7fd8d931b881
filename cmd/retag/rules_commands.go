package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"retag/internal/conflict"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage batch resolution rules",
	}
	cmd.AddCommand(newRulesListCommand(ctx))
	cmd.AddCommand(newRulesAddCommand(ctx))
	cmd.AddCommand(newRulesRemoveCommand(ctx))
	cmd.AddCommand(newRulesClearCommand(ctx))
	return cmd
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored batch rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			rules := svc.prefs.Rules()
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No batch rules stored")
				return nil
			}
			rows := make([][]string, 0, len(rules))
			for _, rule := range rules {
				rows = append(rows, []string{
					string(rule.AppliesTo),
					rule.Pattern,
					rule.Action.String(),
					fmt.Sprintf("%d", rule.UsageCount),
					rule.CreatedAt.Local().Format("2006-01-02"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Selector", "Pattern", "Action", "Uses", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newRulesAddCommand(ctx *commandContext) *cobra.Command {
	var selector string
	cmd := &cobra.Command{
		Use:   "add <pattern> <action>",
		Short: "Add a batch rule",
		Long: "Adds a rule applying an action to every matching conflict. The pattern\n" +
			"depends on the selector: a field name with an optional trailing wildcard\n" +
			"(spotify_*), a source name, or a confidence range such as 0.5-0.9.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			applies, err := parseSelector(selector)
			if err != nil {
				return err
			}
			action, err := conflict.ParseAction(args[1])
			if err != nil {
				return err
			}

			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			rule := conflict.BatchRule{
				Pattern:   args[0],
				Action:    action,
				AppliesTo: applies,
			}
			if err := svc.prefs.AddRule(rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule: %s %q -> %s\n", applies, rule.Pattern, action)
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "field", "Rule selector: field, source, or confidence")
	return cmd
}

func newRulesRemoveCommand(ctx *commandContext) *cobra.Command {
	var selector string
	cmd := &cobra.Command{
		Use:   "remove <pattern>",
		Short: "Remove a batch rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applies, err := parseSelector(selector)
			if err != nil {
				return err
			}

			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			removed, err := svc.prefs.RemoveRule(applies, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no %s rule matches %q", applies, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed rule: %s %q\n", applies, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "field", "Rule selector: field, source, or confidence")
	return cmd
}

func newRulesClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all batch rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			count := len(svc.prefs.Rules())
			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No batch rules stored")
				return nil
			}
			if err := svc.prefs.ClearRules(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d batch rules\n", count)
			return nil
		},
	}
}

func parseSelector(raw string) (conflict.RuleSelector, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "field":
		return conflict.RuleByField, nil
	case "source":
		return conflict.RuleBySource, nil
	case "confidence":
		return conflict.RuleByConfidence, nil
	default:
		return "", fmt.Errorf("unknown selector %q (want field, source, or confidence)", raw)
	}
}
