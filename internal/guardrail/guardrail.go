// Package guardrail statically checks an AI-generated change-set before it
// is written to disk.
//
// Issues are plain strings. Those starting with BlockerPrefix are hard
// failures; everything else is advisory.
package guardrail

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/bundlesmith/internal/changeset"
	"github.com/dshills/bundlesmith/internal/javasrc"
	"github.com/dshills/bundlesmith/internal/manifest"
)

// BlockerPrefix marks an issue that must prevent the change-set from being applied.
const BlockerPrefix = "BLOCKER:"

// DefaultCriticalPrefixes are the platform framework namespaces whose imports
// are resolved against the platform repository.
var DefaultCriticalPrefixes = []string{
	"org.compiere.",
	"org.adempiere.",
	"org.idempiere.",
	"org.osgi.",
}

// Options configures a Validator.
type Options struct {
	// RepositoryDir holds the platform bundles (*.jar), e.g. a p2 repository
	// or a target platform directory. Empty disables import resolution.
	RepositoryDir string
	// CriticalPrefixes replaces DefaultCriticalPrefixes when non-empty.
	CriticalPrefixes []string
	Logger           *slog.Logger
}

// Validator checks change-sets. The repository is indexed at most once, on
// first use, so a Validator should not outlive one invocation.
type Validator struct {
	opts     Options
	prefixes []string
	log      *slog.Logger

	once     sync.Once
	index    *classIndex
	indexErr error
}

// New returns a Validator for opts.
func New(opts Options) *Validator {
	prefixes := opts.CriticalPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultCriticalPrefixes
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Validator{opts: opts, prefixes: prefixes, log: log}
}

// HasBlockingIssue reports whether any issue is a blocker.
func HasBlockingIssue(issues []string) bool {
	for _, issue := range issues {
		if strings.HasPrefix(issue, BlockerPrefix) {
			return true
		}
	}
	return false
}

// Blockers returns the blocking issues.
func Blockers(issues []string) []string {
	var out []string
	for _, issue := range issues {
		if strings.HasPrefix(issue, BlockerPrefix) {
			out = append(out, issue)
		}
	}
	return out
}

func blocker(format string, args ...any) string {
	return BlockerPrefix + " " + fmt.Sprintf(format, args...)
}

// Validate returns the issues found in code, in file order. For each file
// the checks run as: path traversal, directory target, package conformance,
// empty content, critical import resolution. A file with an unusable path
// gets no further checks. Manifest additions are checked last.
func (v *Validator) Validate(code *changeset.GeneratedCode, expectedBasePackage, pluginDir string) []string {
	if code == nil {
		return nil
	}
	var issues []string
	declared := declaredTypes(code)
	parents := parentDirs(code)
	unverifiedReported := false

	for _, f := range code.Files {
		if escapes(pluginDir, f.Path) {
			issues = append(issues, blocker("Path traversal detected: %s", f.Path))
			continue
		}
		if namesDirectory(pluginDir, f.Path, parents) {
			issues = append(issues, blocker("Path is a directory: %s", f.Path))
			continue
		}

		isJava := strings.HasSuffix(f.Path, ".java")
		if isJava && expectedBasePackage != "" {
			pkg := javasrc.Package(f.Content)
			switch {
			case pkg == "":
				issues = append(issues, fmt.Sprintf("Package mismatch: %s declares no package, expected %s or a subpackage", f.Path, expectedBasePackage))
			case pkg != expectedBasePackage && !strings.HasPrefix(pkg, expectedBasePackage+"."):
				issues = append(issues, fmt.Sprintf("Package mismatch: %s declares %s, expected %s or a subpackage", f.Path, pkg, expectedBasePackage))
			}
		}

		if strings.TrimSpace(f.Content) == "" {
			issues = append(issues, fmt.Sprintf("Empty content: %s", f.Path))
			continue
		}

		if !isJava {
			continue
		}
		for _, imp := range javasrc.Imports(f.Content) {
			if !v.critical(imp.Name) {
				continue
			}
			idx, err := v.classes()
			if err != nil {
				if !unverifiedReported {
					// Only a configured but unreadable repository blocks.
					if v.opts.RepositoryDir != "" {
						issues = append(issues, blocker("Critical imports not verified: %v", err))
					} else {
						issues = append(issues, fmt.Sprintf("Critical imports not verified: %v", err))
					}
					unverifiedReported = true
				}
				break
			}
			if !idx.resolves(imp, declared) {
				issues = append(issues, blocker("Unresolved import: %s", importText(imp)))
			}
		}
	}

	for _, add := range code.ManifestAdditions {
		header, _ := manifest.SplitAddition(add)
		if !manifest.Patchable(header) {
			issues = append(issues, blocker("Manifest header not allowed: %s", header))
		}
	}
	return issues
}

func (v *Validator) critical(name string) bool {
	for _, p := range v.prefixes {
		if strings.HasPrefix(name+".", p) {
			return true
		}
	}
	return false
}

func (v *Validator) classes() (*classIndex, error) {
	v.once.Do(func() {
		if v.opts.RepositoryDir == "" {
			v.indexErr = errNoRepository
			return
		}
		v.index, v.indexErr = scanRepository(v.opts.RepositoryDir)
		if v.indexErr == nil {
			v.log.Debug("platform repository indexed",
				"dir", v.opts.RepositoryDir,
				"archives", v.index.archives,
				"classes", len(v.index.classes))
		}
	})
	return v.index, v.indexErr
}

// escapes reports whether rel contains a parent segment, is absolute, or
// resolves outside pluginDir.
func escapes(pluginDir, rel string) bool {
	if rel == "" {
		return true
	}
	slashed := strings.ReplaceAll(rel, `\`, "/")
	if path.IsAbs(slashed) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return true
	}
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return true
		}
	}
	root := pluginDir
	if root == "" {
		root = "."
	}
	r, err := filepath.Rel(root, filepath.Join(root, filepath.FromSlash(slashed)))
	return err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator))
}

// namesDirectory reports whether rel cannot name a file: it ends in a
// separator, cleans to the plugin root, is the parent of another file in the
// change-set, or is an existing directory.
func namesDirectory(pluginDir, rel string, parents map[string]bool) bool {
	slashed := strings.ReplaceAll(rel, `\`, "/")
	if strings.HasSuffix(slashed, "/") || path.Clean(slashed) == "." || parents[path.Clean(slashed)] {
		return true
	}
	fi, err := os.Stat(filepath.Join(pluginDir, filepath.FromSlash(slashed)))
	return err == nil && fi.IsDir()
}

// parentDirs returns every directory the change-set's files live in.
func parentDirs(code *changeset.GeneratedCode) map[string]bool {
	out := make(map[string]bool)
	for _, f := range code.Files {
		dir := path.Dir(path.Clean(strings.ReplaceAll(f.Path, `\`, "/")))
		for dir != "." && dir != "/" && !out[dir] {
			out[dir] = true
			dir = path.Dir(dir)
		}
	}
	return out
}

// declaredTypes returns the fully qualified top-level types the change-set
// itself defines, so imports between generated files resolve.
func declaredTypes(code *changeset.GeneratedCode) map[string]bool {
	out := make(map[string]bool)
	for _, f := range code.Files {
		if !strings.HasSuffix(f.Path, ".java") {
			continue
		}
		pkg := javasrc.Package(f.Content)
		for _, t := range javasrc.TopLevelTypes(f.Content) {
			if pkg == "" {
				out[t] = true
			} else {
				out[pkg+"."+t] = true
			}
		}
	}
	return out
}

func importText(imp javasrc.Import) string {
	if imp.Wildcard {
		return imp.Name + ".*"
	}
	return imp.Name
}
