// Package merge writes a change-set into a plugin directory and patches the
// bundle manifest and build.properties. Every patch is append-only and safe
// to apply repeatedly.
package merge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/bundlesmith/internal/changeset"
	"github.com/dshills/bundlesmith/internal/manifest"
	"github.com/dshills/bundlesmith/internal/patch"
)

// BuildPropertiesPath is the PDE build descriptor relative to a plugin root.
const BuildPropertiesPath = "build.properties"


// Result describes what Apply changed.
type Result struct {
	Files                  []string
	ManifestPatched        bool
	BuildPropertiesPatched bool
	Diffs                  []patch.FileDiff
}

// Apply writes all files of code under pluginDir, then patches the manifest
// and build.properties with the change-set's additions.
func Apply(pluginDir string, code *changeset.GeneratedCode) (*Result, error) {
	if code == nil || len(code.Files) == 0 {
		return nil, errors.New("merge.Apply: change-set has no files")
	}
	res := &Result{}

	files, err := WriteFiles(pluginDir, code.Files)
	if err != nil {
		return nil, err
	}
	res.Files = files

	if len(code.ManifestAdditions) > 0 {
		before, err := readOptional(filepath.Join(pluginDir, filepath.FromSlash(manifest.Path)))
		if err != nil {
			return nil, err
		}
		base := before
		if base == "" {
			base = "Manifest-Version: 1.0\n"
		}
		after := PatchManifest(base, code.ManifestAdditions)
		if after != before {
			if err := writeFile(pluginDir, manifest.Path, after); err != nil {
				return nil, err
			}
			res.ManifestPatched = true
			res.Diffs = append(res.Diffs, patch.Diff(manifest.Path, before, after))
		}
	}

	if len(code.BuildPropertiesAdditions) > 0 {
		before, err := readOptional(filepath.Join(pluginDir, BuildPropertiesPath))
		if err != nil {
			return nil, err
		}
		after := PatchBuildProperties(before, code.BuildPropertiesAdditions)
		if after != before {
			if err := writeFile(pluginDir, BuildPropertiesPath, after); err != nil {
				return nil, err
			}
			res.BuildPropertiesPatched = true
			res.Diffs = append(res.Diffs, patch.Diff(BuildPropertiesPath, before, after))
		}
	}

	return res, nil
}

// WriteFiles writes each file under pluginDir, creating parent directories
// and overwriting existing files. It returns the written relative paths.
func WriteFiles(pluginDir string, files []changeset.File) ([]string, error) {
	var written []string
	for _, f := range files {
		if err := writeFile(pluginDir, f.Path, f.Content); err != nil {
			return written, err
		}
		written = append(written, f.Path)
	}
	return written, nil
}

func writeFile(pluginDir, rel, content string) error {
	root, err := filepath.Abs(pluginDir)
	if err != nil {
		return fmt.Errorf("merge: resolve %s: %w", pluginDir, err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(root, target); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return fmt.Errorf("merge: refusing to write %q outside %s", rel, root)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("merge: create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return fmt.Errorf("merge: write %s: %w", rel, err)
	}
	return nil
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("merge: read %s: %w", path, err)
	}
	return string(data), nil
}

// PatchManifest appends every clause of additions to the matching manifest
// header. An addition may name its header ("Require-Bundle: a,b"); bare
// additions go to Import-Package. Clauses already present, by substring or
// by clause name, are skipped. Headers that are not clause lists, such as
// Bundle-Activator, are only set when absent. When nothing is added the
// input is returned unchanged.
func PatchManifest(text string, additions []string) string {
	m := manifest.Parse(text)
	for _, add := range additions {
		header, value := manifest.SplitAddition(add)
		if !manifest.Patchable(header) {
			if _, ok := m.Get(header); !ok && strings.TrimSpace(value) != "" {
				m.Set(header, strings.TrimSpace(value))
			}
			continue
		}
		for _, clause := range manifest.SplitClauses(value) {
			existing, ok := m.Get(header)
			if ok && hasClause(existing, clause) {
				continue
			}
			if ok && strings.TrimSpace(existing) != "" {
				m.Set(header, existing+","+clause)
			} else {
				m.Set(header, clause)
			}
		}
	}
	if !m.Changed() {
		return text
	}
	return m.String()
}

func hasClause(headerValue, clause string) bool {
	if strings.Contains(headerValue, clause) {
		return true
	}
	name := manifest.ClauseName(clause)
	for _, c := range manifest.SplitClauses(headerValue) {
		if manifest.ClauseName(c) == name {
			return true
		}
	}
	return false
}

// PatchBuildProperties appends each addition as its own line unless that
// exact line is already present. An addition may carry a target-file hint
// such as "build.properties: bin.includes = OSGI-INF/".
func PatchBuildProperties(text string, additions []string) string {
	present := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var b strings.Builder
	b.WriteString(text)
	for _, add := range additions {
		line := strings.TrimSpace(stripFileHint(add))
		if line == "" || present[line] {
			continue
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString(line)
		b.WriteString("\n")
		present[line] = true
	}
	return b.String()
}

func stripFileHint(add string) string {
	before, after, ok := strings.Cut(add, ":")
	if !ok {
		return add
	}
	hint := strings.TrimSpace(before)
	if strings.HasSuffix(hint, ".properties") && !strings.ContainsAny(hint, "= \t") {
		return after
	}
	return add
}
