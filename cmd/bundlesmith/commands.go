package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/bundlesmith/internal/component"
	"github.com/dshills/bundlesmith/internal/config"
	"github.com/dshills/bundlesmith/internal/llm"
	"github.com/dshills/bundlesmith/internal/project"
)

func newTypesCmd() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List component types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if long {
				for _, t := range component.Types() {
					fmt.Fprintf(w, "%s: %s\n  %s\n\n", t.Name, t.Title, t.Description)
				}
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, t := range component.Types() {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Include descriptions")
	return cmd
}

func newConfigCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: rf.configFile})
			if err != nil {
				return exitError(exitInput, "%v", err)
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return exitError(exitInput, "%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(rf.configFile, args[0], args[1]); err != nil {
				return exitError(exitInput, "%v", err)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print all configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{File: rf.configFile})
			if err != nil {
				return exitError(exitInput, "%v", err)
			}
			for _, k := range config.Keys() {
				v, _ := cfg.Get(k)
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
			}
			return nil
		},
	})
	return cmd
}

func newAICmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "AI provider commands",
	}

	var dir, provider string
	check := &cobra.Command{
		Use:   "check",
		Short: "Resolve the configured AI provider and send a test request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return exitError(exitInput, "invalid --dir: %v", err)
			}
			cfg, err := config.Load(config.Options{File: rf.configFile, PluginDir: abs})
			if err != nil {
				return exitError(exitInput, "%v", err)
			}
			if provider != "" {
				cfg.AIProvider = provider
			}
			client, reason := newRegistry().Resolve(cfg.ProviderConfig())
			if client == nil {
				return exitError(exitProvider, "no AI provider: %s", reason)
			}
			r := llm.Validate(cmd.Context(), client)
			if !r.Success {
				return exitError(exitProvider, "%s validation failed: %s", client.Name(), r.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", client.Name())
			return nil
		},
	}
	check.Flags().StringVar(&dir, "dir", ".", "Plugin directory whose .env is consulted")
	check.Flags().StringVar(&provider, "provider", "", "Provider to check instead of the configured one")
	cmd.AddCommand(check)
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the analyzed project context as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := project.Analyze(dir)
			if err != nil {
				return exitError(exitInput, "%v", err)
			}
			data, err := json.MarshalIndent(ctx, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal output: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Plugin directory")
	return cmd
}
