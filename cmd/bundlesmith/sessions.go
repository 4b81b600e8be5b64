package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/dshills/bundlesmith/internal/config"
	"github.com/dshills/bundlesmith/internal/session"
)

func newSessionsCmd(rf *rootFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Review recorded generation runs",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", ".", "Plugin directory")

	sessionDir := func() (string, error) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", exitError(exitInput, "invalid --dir: %v", err)
		}
		cfg, err := config.Load(config.Options{File: rf.configFile, PluginDir: abs})
		if err != nil {
			return "", exitError(exitInput, "%v", err)
		}
		return session.DirFor(cfg.SessionDir, abs), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List session logs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sd, err := sessionDir()
			if err != nil {
				return err
			}
			files, err := session.List(sd)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No sessions in %s\n", sd)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, f := range files {
				s, err := session.ReadSummary(f)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", filepath.Base(f), s.Title, s.FinalState(), s.Result)
			}
			return tw.Flush()
		},
	})

	var raw bool
	show := &cobra.Command{
		Use:   "show [file]",
		Short: "Print a session log; the newest one when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				sd, err := sessionDir()
				if err != nil {
					return err
				}
				files, err := session.List(sd)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return exitError(exitInput, "no sessions in %s", sd)
				}
				path = files[0]
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return exitError(exitInput, "%v", err)
			}

			w := cmd.OutOrStdout()
			if raw || !isTerminal(w) {
				_, err = w.Write(data)
				return err
			}
			r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
			if err != nil {
				return fmt.Errorf("failed to create renderer: %w", err)
			}
			out, err := r.Render(string(data))
			if err != nil {
				return fmt.Errorf("failed to render session: %w", err)
			}
			fmt.Fprint(w, out)
			return nil
		},
	}
	show.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal rendering")
	cmd.AddCommand(show)
	return cmd
}
