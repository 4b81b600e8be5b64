// Package orchestrator runs one component-add invocation: analyze the
// plugin, ask the AI for a change-set, validate it and apply it, or fall
// back to the template generator. A usable scaffold is always produced for
// known component types.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/bundlesmith/internal/changeset"
	"github.com/dshills/bundlesmith/internal/component"
	"github.com/dshills/bundlesmith/internal/config"
	"github.com/dshills/bundlesmith/internal/fallback"
	"github.com/dshills/bundlesmith/internal/guardrail"
	"github.com/dshills/bundlesmith/internal/llm"
	"github.com/dshills/bundlesmith/internal/merge"
	"github.com/dshills/bundlesmith/internal/patch"
	"github.com/dshills/bundlesmith/internal/project"
	"github.com/dshills/bundlesmith/internal/prompt"
	"github.com/dshills/bundlesmith/internal/session"
	"github.com/dshills/bundlesmith/internal/skill"
)

// State is a pipeline stage.
type State string

const (
	StateStart           State = "START"
	StateContextBuilt    State = "CONTEXT_BUILT"
	StateAIDisabled      State = "AI_DISABLED"
	StatePromptBuilt     State = "PROMPT_BUILT"
	StateAICalled        State = "AI_CALLED"
	StateParseFailed     State = "PARSE_FAILED"
	StateParsed          State = "PARSED"
	StateBlocked         State = "BLOCKED"
	StateValidated       State = "VALIDATED"
	StateApplied         State = "APPLIED"
	StateFallbackApplied State = "FALLBACK_APPLIED"
)

// Request is one component-add invocation.
type Request struct {
	PluginDir     string
	ComponentType string
	ComponentName string
	// Instruction is the user's free-text business intent.
	Instruction string
	Params      map[string]string
	// NoAI skips the AI step for this run.
	NoAI bool
}

// Result reports what a run did.
type Result struct {
	State State
	// Trace lists every state entered, in order.
	Trace      []State
	UsedAI     bool
	Provider   string
	Reason     string
	Issues     []string
	Warnings   []string
	Files      []string
	Diffs      []patch.FileDiff
	SessionLog string
}

// Options configures an Orchestrator.
type Options struct {
	// Config supplies AI, guardrail, skill and session settings. A nil
	// Config disables AI.
	Config *config.Config
	// Registry resolves the AI client. Nil means llm.DefaultRegistry().
	Registry *llm.Registry
	Logger   *slog.Logger
}

// Orchestrator sequences the generation pipeline.
type Orchestrator struct {
	cfg *config.Config
	reg *llm.Registry
	log *slog.Logger
}

// New returns an Orchestrator for opts.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{cfg: opts.Config, reg: opts.Registry, log: opts.Logger}
	if o.cfg == nil {
		o.cfg = &config.Config{}
	}
	if o.reg == nil {
		o.reg = llm.DefaultRegistry()
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o
}

type run struct {
	o     *Orchestrator
	req   Request
	res   *Result
	entry session.Entry
}

func (r *run) enter(s State, args ...any) {
	r.res.State = s
	r.res.Trace = append(r.res.Trace, s)
	r.o.log.Debug("pipeline state", append([]any{"state", string(s)}, args...)...)
}

// Run executes the pipeline. Errors are returned only for unknown component
// types, unreadable plugin directories and failed writes; every AI-side
// failure ends in the fallback generator.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if _, err := component.Lookup(req.ComponentType); err != nil {
		return nil, fmt.Errorf("orchestrator.Run: %w", err)
	}

	r := &run{o: o, req: req, res: &Result{}}
	r.entry = session.Entry{
		Time:          time.Now(),
		ComponentType: req.ComponentType,
		ComponentName: req.ComponentName,
		PluginDir:     req.PluginDir,
	}
	r.enter(StateStart, "type", req.ComponentType, "name", req.ComponentName)

	pctx, err := project.Analyze(req.PluginDir)
	if err != nil {
		return nil, fmt.Errorf("orchestrator.Run: %w", err)
	}
	r.enter(StateContextBuilt, "plugin", pctx.PluginID, "types", len(pctx.ExistingTypes))
	if !pctx.HasManifest() {
		r.res.Warnings = append(r.res.Warnings, "no bundle manifest found; project context is partial")
	}

	code, err := r.generate(ctx, pctx)
	if err != nil {
		return nil, err
	}

	if code != nil {
		if err := r.apply(code, StateApplied); err != nil {
			// The raw AI output is still recorded for review.
			r.res.Reason = "AI change-set could not be applied: " + err.Error()
			r.writeSession()
			return nil, err
		}
		r.res.UsedAI = true
	} else {
		fb, err := fallback.Generate(pctx, req.ComponentType, req.ComponentName)
		if err != nil {
			return nil, fmt.Errorf("orchestrator.Run: %w", err)
		}
		if err := r.apply(fb, StateFallbackApplied); err != nil {
			return nil, err
		}
	}

	r.writeSession()
	return r.res, nil
}

// generate returns a validated AI change-set, or nil when the fallback must
// be used. The reason is recorded on the result.
func (r *run) generate(ctx context.Context, pctx *project.Context) (*changeset.GeneratedCode, error) {
	cfg := r.o.cfg
	pc := cfg.ProviderConfig()
	if r.req.NoAI {
		pc.Enabled = false
	}

	client, reason := r.o.reg.Resolve(pc)
	if client == nil {
		r.res.Reason = reason
		r.enter(StateAIDisabled, "reason", reason)
		return nil, nil
	}
	r.res.Provider = client.Name()
	r.entry.Provider = client.Name()

	sk, err := skill.Resolve(cfg.SkillsDir, r.req.ComponentType)
	if err != nil {
		r.o.log.Warn("skill not loaded", "type", r.req.ComponentType, "err", err)
		r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("skill not loaded: %v", err))
	}

	params := make(map[string]string, len(r.req.Params)+1)
	for k, v := range r.req.Params {
		params[k] = v
	}
	if r.req.Instruction != "" {
		params[prompt.InstructionParam] = r.req.Instruction
	}
	text := prompt.Build(prompt.Opts{
		Skill:         sk,
		Context:       pctx,
		ComponentType: r.req.ComponentType,
		ComponentName: r.req.ComponentName,
		Params:        params,
	})
	r.entry.Prompt = text
	r.enter(StatePromptBuilt, "bytes", len(text))

	resp := client.Generate(ctx, text)
	r.entry.RawResponse = resp.Content
	r.enter(StateAICalled, "provider", client.Name(), "success", resp.Success)
	if !resp.Success {
		r.res.Reason = "AI request failed: " + resp.Err
		r.enter(StateParseFailed, "reason", r.res.Reason)
		return nil, nil
	}

	parsed := changeset.ParseDetailed(resp.Content)
	if parsed.Code == nil {
		r.res.Reason = parsed.Err
		r.enter(StateParseFailed, "reason", parsed.Err)
		return nil, nil
	}
	r.enter(StateParsed, "files", len(parsed.Code.Files))

	opts := cfg.GuardrailOptions()
	opts.Logger = r.o.log
	issues := guardrail.New(opts).Validate(parsed.Code, pctx.BasePackage, r.req.PluginDir)
	r.res.Issues = issues
	if guardrail.HasBlockingIssue(issues) {
		blockers := guardrail.Blockers(issues)
		r.res.Reason = fmt.Sprintf("guardrail blocked the AI change-set (%d blocking issue(s))", len(blockers))
		r.enter(StateBlocked, "blockers", len(blockers))
		return nil, nil
	}
	for _, issue := range issues {
		r.res.Warnings = append(r.res.Warnings, issue)
		r.o.log.Warn("guardrail advisory", "issue", issue)
	}
	r.enter(StateValidated, "advisories", len(issues))
	return parsed.Code, nil
}

func (r *run) apply(code *changeset.GeneratedCode, final State) error {
	res, err := merge.Apply(r.req.PluginDir, code)
	if err != nil {
		return fmt.Errorf("orchestrator.Run: %w", err)
	}
	r.res.Files = res.Files
	r.res.Diffs = res.Diffs
	r.enter(final, "files", len(res.Files))
	return nil
}

// writeSession records the run. A failure to write is reported as a warning
// since the component itself was applied.
func (r *run) writeSession() {
	e := r.entry
	e.State = strings.Join(traceStrings(r.res.Trace), " → ")
	e.UsedAI = r.res.UsedAI
	e.Reason = r.res.Reason
	e.Issues = r.res.Issues
	e.Files = r.res.Files
	e.Diffs = r.res.Diffs

	dir := session.DirFor(r.o.cfg.SessionDir, r.req.PluginDir)
	path, err := session.NewWriter(dir, r.o.cfg.Secrets()...).Write(e)
	if err != nil {
		r.o.log.Warn("session log not written", "err", err)
		r.res.Warnings = append(r.res.Warnings, fmt.Sprintf("session log not written: %v", err))
		return
	}
	r.res.SessionLog = path
}

func traceStrings(trace []State) []string {
	out := make([]string, len(trace))
	for i, s := range trace {
		out[i] = string(s)
	}
	return out
}
