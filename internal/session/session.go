// Package session persists one markdown record per generation run so that
// prompts, raw AI output and rejection reasons can be reviewed and reused.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/bundlesmith/internal/patch"
	"github.com/dshills/bundlesmith/internal/redact"
)

// DefaultDir is the session directory relative to the plugin root.
const DefaultDir = ".bundlesmith/sessions"

// DirFor returns the configured session directory, or the default one under
// pluginDir when none is configured.
func DirFor(configured, pluginDir string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(pluginDir, filepath.FromSlash(DefaultDir))
}

// List returns the session files in dir, newest first. A missing directory
// yields no entries.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session.List: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	// Names start with a UTC timestamp.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// Entry is one generation run.
type Entry struct {
	Time          time.Time
	ComponentType string
	ComponentName string
	PluginDir     string
	State         string
	Provider      string
	UsedAI        bool
	Reason        string
	Issues        []string
	Prompt        string
	RawResponse   string
	Files         []string
	Diffs         []patch.FileDiff
}

// Writer writes entries as markdown files into Dir.
type Writer struct {
	Dir string
	// Secrets are literal values masked in addition to the pattern rules.
	Secrets []string

	now   func() time.Time
	newID func() string
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string, secrets ...string) *Writer {
	return &Writer{Dir: dir, Secrets: secrets}
}

// Write renders e into a new file named <UTC timestamp>-<uuid>.md and
// returns its path.
func (w *Writer) Write(e Entry) (string, error) {
	now := time.Now
	if w.now != nil {
		now = w.now
	}
	newID := uuid.NewString
	if w.newID != nil {
		newID = w.newID
	}
	if e.Time.IsZero() {
		e.Time = now()
	}

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("session.Write: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", e.Time.UTC().Format("20060102T150405Z"), newID())
	path := filepath.Join(w.Dir, name)
	text := Markdown(w.redact(e))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("session.Write: %w", err)
	}
	return path, nil
}

// redact masks secrets in e. The prompt and raw response keep assignments
// intact so generated code stays reusable; only configured values and
// key-shaped credentials are masked there.
func (w *Writer) redact(e Entry) Entry {
	e.PluginDir = redact.Values(e.PluginDir, w.Secrets...)
	e.Reason = redact.Values(e.Reason, w.Secrets...)
	issues := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		issues[i] = redact.Values(issue, w.Secrets...)
	}
	e.Issues = issues
	diffs := make([]patch.FileDiff, len(e.Diffs))
	for i, d := range e.Diffs {
		diffs[i] = patch.FileDiff{Path: d.Path, Text: redact.Keys(d.Text, w.Secrets...)}
	}
	e.Diffs = diffs
	e.Prompt = redact.Keys(e.Prompt, w.Secrets...)
	e.RawResponse = redact.Keys(e.RawResponse, w.Secrets...)
	return e
}

// Markdown renders an entry. Text is not redacted.
func Markdown(e Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s\n\n", e.ComponentType, e.ComponentName)
	fmt.Fprintf(&b, "**Time:** %s\n", e.Time.UTC().Format(time.RFC3339))
	if e.PluginDir != "" {
		fmt.Fprintf(&b, "**Plugin:** %s\n", e.PluginDir)
	}
	fmt.Fprintf(&b, "**State:** %s\n", e.State)
	if e.Provider != "" {
		fmt.Fprintf(&b, "**Provider:** %s\n", e.Provider)
	}
	if e.UsedAI {
		b.WriteString("**Result:** AI-generated\n\n")
	} else {
		b.WriteString("**Result:** fallback template\n\n")
	}

	if e.Reason != "" {
		b.WriteString("## Reason\n\n")
		fmt.Fprintf(&b, "%s\n\n", e.Reason)
	}

	if len(e.Issues) > 0 {
		b.WriteString("## Guardrail Issues\n\n")
		for _, issue := range e.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\n")
	}

	if len(e.Files) > 0 {
		b.WriteString("## Files Written\n\n")
		for _, f := range e.Files {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}

	for _, d := range e.Diffs {
		if d.Empty() {
			continue
		}
		fmt.Fprintf(&b, "## Changes to %s\n\n", d.Path)
		fence(&b, "diff", d.Text)
	}

	if e.Prompt != "" {
		b.WriteString("## Prompt\n\n")
		fence(&b, "text", e.Prompt)
	}

	if e.RawResponse != "" {
		b.WriteString("## Raw AI Response\n\n")
		fence(&b, "text", e.RawResponse)
	}

	return b.String()
}

// fence writes text in a fenced block long enough not to be closed by any
// backtick run inside text.
func fence(b *strings.Builder, lang, text string) {
	ticks := "```"
	for strings.Contains(text, ticks) {
		ticks += "`"
	}
	fmt.Fprintf(b, "%s%s\n%s", ticks, lang, text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "%s\n\n", ticks)
}

// Summary is the header of a written session file.
type Summary struct {
	Path   string
	Title  string
	State  string
	Result string
}

// FinalState returns the last state of the recorded trace.
func (s Summary) FinalState() string {
	if i := strings.LastIndex(s.State, "→"); i >= 0 {
		return strings.TrimSpace(s.State[i+len("→"):])
	}
	return s.State
}

// ReadSummary reads the header lines of a session file.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("session.ReadSummary: %w", err)
	}
	s := Summary{Path: path}
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case s.Title == "" && strings.HasPrefix(line, "# "):
			s.Title = strings.TrimPrefix(line, "# ")
		case strings.HasPrefix(line, "**State:** "):
			s.State = strings.TrimPrefix(line, "**State:** ")
		case strings.HasPrefix(line, "**Result:** "):
			s.Result = strings.TrimPrefix(line, "**Result:** ")
		case strings.HasPrefix(line, "## "):
			return s, nil
		}
	}
	return s, nil
}
