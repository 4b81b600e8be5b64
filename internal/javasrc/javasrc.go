// Package javasrc extracts declarations from Java source text by line-oriented
// pattern matching. It does not parse Java; it recognizes the handful of
// top-level constructs the analyzer and the guardrail need.
package javasrc

import (
	"regexp"
	"strings"
)

var (
	packageDecl = regexp.MustCompile(`(?m)^\s*package\s+([\w.]+)\s*;`)
	importDecl  = regexp.MustCompile(`(?m)^\s*import\s+(static\s+)?([\w.]+(?:\.\*)?)\s*;`)
	typeDecl    = regexp.MustCompile(`(?m)^(?:public\s+|protected\s+|private\s+)?(?:abstract\s+|final\s+|sealed\s+|non-sealed\s+|static\s+|strictfp\s+)*(class|interface|enum|record|@interface)\s+(\w+)`)
)

// Import is one import declaration.
type Import struct {
	// Name is the imported name without a trailing ".*".
	Name     string
	Static   bool
	Wildcard bool
}

// Package returns the declared package, or "" for the default package.
func Package(src string) string {
	m := packageDecl.FindStringSubmatch(stripComments(src))
	if m == nil {
		return ""
	}
	return m[1]
}

// Imports returns the import declarations in source order.
func Imports(src string) []Import {
	var out []Import
	for _, m := range importDecl.FindAllStringSubmatch(stripComments(src), -1) {
		imp := Import{Name: m[2], Static: m[1] != ""}
		if strings.HasSuffix(imp.Name, ".*") {
			imp.Name = strings.TrimSuffix(imp.Name, ".*")
			imp.Wildcard = true
		}
		out = append(out, imp)
	}
	return out
}

// TopLevelTypes returns the names of types declared at column zero.
func TopLevelTypes(src string) []string {
	var out []string
	for _, m := range typeDecl.FindAllStringSubmatch(stripComments(src), -1) {
		out = append(out, m[2])
	}
	return out
}

// stripComments blanks block and line comments so commented-out
// declarations are not matched. String literals are left alone.
func stripComments(src string) string {
	if !strings.Contains(src, "/*") && !strings.Contains(src, "//") {
		return src
	}
	var b strings.Builder
	b.Grow(len(src))
	inBlock, inLine, inString := false, false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inBlock:
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				inBlock = false
				i++
			} else if c == '\n' {
				b.WriteByte('\n')
			}
		case inLine:
			if c == '\n' {
				inLine = false
				b.WriteByte('\n')
			}
		case inString:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == '"' || c == '\n' {
				inString = false
			}
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			inBlock = true
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			inLine = true
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
