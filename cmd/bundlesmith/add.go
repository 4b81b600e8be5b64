package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dshills/bundlesmith/internal/component"
	"github.com/dshills/bundlesmith/internal/config"
	"github.com/dshills/bundlesmith/internal/guardrail"
	"github.com/dshills/bundlesmith/internal/llm"
	"github.com/dshills/bundlesmith/internal/orchestrator"
	"github.com/dshills/bundlesmith/internal/patch"
)

// newRegistry is replaced in tests.
var newRegistry = llm.DefaultRegistry

type addFlags struct {
	dir         string
	instruction string
	params      []string
	provider    string
	model       string
	noAI        bool
	skillsDir   string
	repository  string
	patchOut    string
}

func newAddCmd(rf *rootFlags) *cobra.Command {
	f := &addFlags{}

	cmd := &cobra.Command{
		Use:   "add <type> <name>",
		Short: "Add a component to a plugin, AI-assisted when a provider is configured",
		Long: `Add a component of the given type to the plugin in --dir.

When an AI provider is configured the component is generated from the
instruction and the project context, validated, then applied. If AI is
disabled, the response is unusable or the guardrail blocks it, a template
component is generated instead. Every run is recorded in the session log.

Run "bundlesmith types" for the list of component types.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, rf, f, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.dir, "dir", ".", "Plugin directory")
	flags.StringVarP(&f.instruction, "instruction", "i", "", "What the component should do")
	flags.StringArrayVarP(&f.params, "param", "p", nil, "Extra key=value parameter for the prompt (may be repeated)")
	flags.StringVar(&f.provider, "provider", "", "AI provider: anthropic, openai or gemini, optionally provider:model")
	flags.StringVar(&f.model, "model", "", "Model ID")
	flags.BoolVar(&f.noAI, "no-ai", false, "Use the template generator only")
	flags.StringVar(&f.skillsDir, "skills-dir", "", "Directory of SKILL.md guidance per component type")
	flags.StringVar(&f.repository, "repository", "", "Platform bundle repository used to resolve framework imports")
	flags.StringVar(&f.patchOut, "patch-out", "", "Write manifest and build.properties changes as a unified diff")

	return cmd
}

func runAdd(cmd *cobra.Command, rf *rootFlags, f *addFlags, typeName, name string) error {
	if !component.Known(typeName) {
		return exitError(exitInput, "unknown component type %q; run \"bundlesmith types\"", typeName)
	}
	if strings.TrimSpace(name) == "" {
		return exitError(exitInput, "component name must not be empty")
	}
	params, err := parseParams(f.params)
	if err != nil {
		return exitError(exitInput, "%v", err)
	}

	dir, err := filepath.Abs(f.dir)
	if err != nil {
		return exitError(exitInput, "invalid --dir: %v", err)
	}
	cfg, err := config.Load(config.Options{File: rf.configFile, PluginDir: dir})
	if err != nil {
		return exitError(exitInput, "%v", err)
	}
	if f.provider != "" {
		cfg.AIProvider = f.provider
	}
	if f.model != "" {
		cfg.AIModel = f.model
	}
	if f.skillsDir != "" {
		cfg.SkillsDir = f.skillsDir
	}
	if f.repository != "" {
		cfg.PlatformRepository = f.repository
	}

	o := orchestrator.New(orchestrator.Options{
		Config:   cfg,
		Registry: newRegistry(),
		Logger:   newLogger(cmd.ErrOrStderr(), rf.verbose),
	})
	res, err := o.Run(cmd.Context(), orchestrator.Request{
		PluginDir:     dir,
		ComponentType: typeName,
		ComponentName: name,
		Instruction:   f.instruction,
		Params:        params,
		NoAI:          f.noAI,
	})
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), typeName, res)

	if f.patchOut != "" {
		if err := patch.WritePatchFile(res.Diffs, f.patchOut); err != nil {
			return fmt.Errorf("failed to write patch: %w", err)
		}
	}
	return nil
}

var (
	headlineStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func printSummary(w io.Writer, typeName string, res *orchestrator.Result) {
	p := message.NewPrinter(language.English)
	styled := isTerminal(w)
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	if res.UsedAI {
		fmt.Fprintln(w, style(headlineStyle, p.Sprintf("Added %s using AI (%s).", typeName, res.Provider)))
	} else {
		fmt.Fprintln(w, style(headlineStyle, p.Sprintf("Added %s from template.", typeName)))
		if res.Reason != "" {
			p.Fprintf(w, "AI not used: %s\n", res.Reason)
		}
		for _, issue := range guardrail.Blockers(res.Issues) {
			fmt.Fprintln(w, style(warnStyle, "  "+issue))
		}
	}

	p.Fprintf(w, "%d file(s) written:\n", len(res.Files))
	for _, f := range res.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	for _, d := range res.Diffs {
		if !d.Empty() {
			fmt.Fprintf(w, "  %s (patched)\n", d.Path)
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, style(warnStyle, "warning: "+warn))
	}
	if res.SessionLog != "" {
		if !res.UsedAI && res.State == orchestrator.StateFallbackApplied && res.Provider != "" {
			fmt.Fprintf(w, "Rejected AI output saved for review: %s\n", res.SessionLog)
		} else {
			fmt.Fprintf(w, "Session log: %s\n", res.SessionLog)
		}
	}
}

func parseParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
