// Package patch renders line diffs of files rewritten by the merge engine and
// writes them to a patch file.
package patch

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileDiff is the textual diff of one file.
type FileDiff struct {
	Path string
	Text string
}

// Diff compares two versions of a file line by line. The result is empty
// when before and after are identical.
func Diff(path, before, after string) FileDiff {
	fd := FileDiff{Path: path}
	if before == after {
		return fd
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	fd.Text = sb.String()
	return fd
}

// Empty reports whether the diff carries no changes.
func (d FileDiff) Empty() bool { return d.Text == "" }

// WritePatchFile writes all non-empty diffs to the given path.
// If there are no diffs, no file is created.
func WritePatchFile(diffs []FileDiff, outPath string) error {
	var b strings.Builder
	for _, d := range diffs {
		if d.Empty() {
			continue
		}
		b.WriteString(d.Text)
	}
	if b.Len() == 0 {
		return nil
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("patch.WritePatchFile: %w", err)
	}
	return nil
}
