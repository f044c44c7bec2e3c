package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/acornrpa/acorn/internal/models"
	"github.com/acornrpa/acorn/internal/script"
)

func newScriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Reply script management commands",
	}

	cmd.AddCommand(newScriptListCmd())
	cmd.AddCommand(newScriptAddCmd())
	cmd.AddCommand(newScriptShowCmd())
	cmd.AddCommand(newScriptEnableCmd(true))
	cmd.AddCommand(newScriptEnableCmd(false))
	cmd.AddCommand(newScriptDeleteCmd())
	cmd.AddCommand(newScriptTestCmd())
	return cmd
}

func newScriptListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reply scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			scripts, err := st.Scripts()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAUTHOR\tENABLED\tDESCRIPTION")
			for _, sc := range scripts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
					sc.ID, sc.Name, sc.Author, sc.Enabled, sc.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newScriptAddCmd() *cobra.Command {
	var (
		configPath string
		id         string
		name       string
		desc       string
		author     string
		enabled    bool
	)

	cmd := &cobra.Command{
		Use:   "add <file.js>",
		Short: "Add a reply script from a file",
		Long:  "Compiles the script before saving; a script that does not compile is rejected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if name == "" {
				name = id
			}

			// Compile check only; the registration is thrown away.
			eval := script.NewEvaluator(script.EvaluatorOpts{Out: &bytes.Buffer{}})
			if err := eval.Register(id, string(source)); err != nil {
				return fmt.Errorf("script does not compile: %w", err)
			}

			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sc := models.ScriptInfo{
				ID:          id,
				Name:        name,
				Content:     string(source),
				Description: desc,
				Author:      author,
				Enabled:     enabled,
			}
			if err := st.SaveScript(&sc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved script %s (enabled=%v)\n", sc.ID, sc.Enabled)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	cmd.Flags().StringVar(&id, "id", "", "script id (default: file name without extension)")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: id)")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&author, "author", "", "author")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "enable the script")
	return cmd
}

func newScriptShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one script's source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sc, err := st.ScriptByID(args[0])
			if err != nil {
				return err
			}
			if sc == nil {
				return fmt.Errorf("script %q not found", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Script %s: %s (enabled=%v)\n", sc.ID, sc.Name, sc.Enabled)
			if sc.Description != "" {
				fmt.Fprintf(out, "  %s\n", sc.Description)
			}
			fmt.Fprintln(out, sc.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newScriptEnableCmd(enable bool) *cobra.Command {
	var configPath string

	use, short := "enable <id>", "Enable a script"
	if !enable {
		use, short = "disable <id>", "Disable a script"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.SetScriptEnabled(args[0], enable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Script %s enabled=%v\n", args[0], enable)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newScriptDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteScript(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted script %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	return cmd
}

func newScriptTestCmd() *cobra.Command {
	var (
		configPath string
		message    string
		sender     string
	)

	cmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Run a stored script against a sample message",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sc, err := st.ScriptByID(args[0])
			if err != nil {
				return err
			}
			if sc == nil {
				return fmt.Errorf("script %q not found", args[0])
			}

			eval := script.NewEvaluator(script.EvaluatorOpts{Out: cmd.OutOrStdout()})
			if err := eval.Register(sc.ID, sc.Content); err != nil {
				return fmt.Errorf("script does not compile: %w", err)
			}
			reply, err := eval.ProcessChatMessage(sc.ID, message, sender)
			if err != nil {
				return err
			}
			if reply == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(no reply)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reply: %s\n", reply)
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "acorn.yaml", "path to config file")
	cmd.Flags().StringVar(&message, "message", "hello", "sample message text")
	cmd.Flags().StringVar(&sender, "sender", "tester", "sample sender name")
	return cmd
}
