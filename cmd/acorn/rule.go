package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/acornrpa/acorn/internal/models"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Reply rule management commands",
	}

	cmd.AddCommand(newRuleListCmd())
	cmd.AddCommand(newRuleAddCmd())
	cmd.AddCommand(newRuleShowCmd())
	cmd.AddCommand(newRuleEnableCmd(true))
	cmd.AddCommand(newRuleEnableCmd(false))
	cmd.AddCommand(newRulePriorityCmd())
	cmd.AddCommand(newRuleDeleteCmd())
	return cmd
}

func newRuleListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reply rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			rules, err := st.Rules()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMATCH\tPATTERN\tRESPONSE\tPRIO\tENABLED")
			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%v\n",
					r.ID, r.Name, r.MatchType, r.MatchPattern, r.ResponseType, r.Priority, r.Enabled)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newRuleAddCmd() *cobra.Command {
	var (
		configPath string
		rule       models.MessageRule
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a reply rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.ValidMatchType(rule.MatchType) {
				return fmt.Errorf("invalid match type %q", rule.MatchType)
			}
			if !models.ValidResponseType(rule.ResponseType) {
				return fmt.Errorf("invalid response type %q", rule.ResponseType)
			}
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.SaveRule(&rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %d (%s)\n", rule.ID, rule.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	cmd.Flags().StringVar(&rule.Name, "name", "", "rule name (required)")
	cmd.Flags().StringVar(&rule.MatchType, "match", models.MatchContains, "match type (exact, contains, regex, script)")
	cmd.Flags().StringVar(&rule.MatchPattern, "pattern", "", "match pattern")
	cmd.Flags().StringVar(&rule.ResponseType, "response", models.ResponseFixed, "response type (fixed, random, script)")
	cmd.Flags().StringVar(&rule.ResponseContent, "content", "", "response content, or script id for script responses")
	cmd.Flags().IntVar(&rule.Priority, "priority", 0, "priority (higher wins)")
	cmd.Flags().Int64Var(&rule.DelayMs, "delay", 0, "reply delay in milliseconds")
	cmd.Flags().BoolVar(&rule.Enabled, "enabled", true, "enable the rule")
	cmd.MarkFlagRequired("name")
	return cmd
}

func parseRuleID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q", arg)
	}
	return uint(id), nil
}

func newRuleShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			r, err := st.RuleByID(id)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("rule %d not found", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rule %d: %s\n", r.ID, r.Name)
			fmt.Fprintf(out, "  Match:    %s %q\n", r.MatchType, r.MatchPattern)
			fmt.Fprintf(out, "  Response: %s %q\n", r.ResponseType, r.ResponseContent)
			fmt.Fprintf(out, "  Priority: %d\n", r.Priority)
			fmt.Fprintf(out, "  Delay:    %dms\n", r.DelayMs)
			fmt.Fprintf(out, "  Enabled:  %v\n", r.Enabled)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newRuleEnableCmd(enable bool) *cobra.Command {
	var configPath string

	use, short := "enable <id>", "Enable a rule"
	if !enable {
		use, short = "disable <id>", "Disable a rule"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.SetRuleEnabled(id, enable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d enabled=%v\n", id, enable)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newRulePriorityCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "priority <id> <priority>",
		Short: "Set a rule's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			prio, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid priority %q", args[1])
			}
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.SetRulePriority(id, prio); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule %d priority=%d\n", id, prio)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newRuleDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRuleID(args[0])
			if err != nil {
				return err
			}
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteRule(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}
