// Package manifest reads and edits OSGi bundle manifests (META-INF/MANIFEST.MF).
//
// Parsing keeps every physical line so that a manifest written back without
// edits is byte-identical to the input. Only headers touched through Set are
// re-rendered.
package manifest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Path is the manifest location relative to a bundle root.
const Path = "META-INF/MANIFEST.MF"

// Well-known header names.
const (
	HeaderSymbolicName  = "Bundle-SymbolicName"
	HeaderVersion       = "Bundle-Version"
	HeaderActivator     = "Bundle-Activator"
	HeaderRequireBundle = "Require-Bundle"
	HeaderImportPackage = "Import-Package"
	HeaderExportPackage = "Export-Package"
	HeaderServiceComp   = "Service-Component"
)

// listHeaders hold comma-separated clause lists that additions may extend.
var listHeaders = []string{
	HeaderImportPackage,
	HeaderRequireBundle,
	HeaderExportPackage,
	HeaderServiceComp,
}

var additionHeaderRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*):\s*(.*)$`)

// Patchable reports whether name is a clause-list header that generated
// additions may extend.
func Patchable(name string) bool {
	for _, h := range listHeaders {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// SplitAddition splits an addition such as "Require-Bundle: a,b" into header
// and value. Additions without a header name belong to Import-Package.
func SplitAddition(add string) (header, value string) {
	add = strings.TrimSpace(add)
	if sm := additionHeaderRe.FindStringSubmatch(add); sm != nil {
		return sm[1], sm[2]
	}
	return HeaderImportPackage, add
}

// maxLineBytes is the manifest line length limit, newline excluded.
const maxLineBytes = 72

var headerLineRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_-]*):(?: (.*))?$`)

// Header is one logical manifest header.
type Header struct {
	Name  string
	Value string

	lines []string
	dirty bool
}

type entry struct {
	header *Header
	raw    string
}

// Manifest is an ordered, line-preserving view of a manifest file.
type Manifest struct {
	entries      []entry
	eol          string
	finalNewline bool
	changed      bool
}

// Parse splits manifest text into headers. Unparseable lines are kept verbatim.
func Parse(text string) *Manifest {
	m := &Manifest{eol: "\n"}
	if strings.Contains(text, "\r\n") {
		m.eol = "\r\n"
	}
	if text == "" {
		return m
	}
	m.finalNewline = strings.HasSuffix(text, "\n")
	body := strings.TrimSuffix(text, "\n")
	var current *Header
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if current != nil && strings.HasPrefix(line, " ") {
			current.lines = append(current.lines, line)
			current.Value += line[1:]
			continue
		}
		if sm := headerLineRe.FindStringSubmatch(line); sm != nil {
			current = &Header{Name: sm[1], Value: sm[2], lines: []string{line}}
			m.entries = append(m.entries, entry{header: current})
			continue
		}
		current = nil
		m.entries = append(m.entries, entry{raw: line})
	}
	return m
}

// Headers returns the parsed headers in file order.
func (m *Manifest) Headers() []*Header {
	var out []*Header
	for _, e := range m.entries {
		if e.header != nil {
			out = append(out, e.header)
		}
	}
	return out
}

// Get returns the value of the named header. Names compare case-insensitively.
func (m *Manifest) Get(name string) (string, bool) {
	if h := m.find(name); h != nil {
		return h.Value, true
	}
	return "", false
}

// Set replaces the value of the named header, appending the header after
// the last existing one when absent.
func (m *Manifest) Set(name, value string) {
	if h := m.find(name); h != nil {
		if h.Value == value {
			return
		}
		h.Value = value
		h.dirty = true
		m.changed = true
		return
	}
	h := &Header{Name: name, Value: value, dirty: true}
	insertAt := len(m.entries)
	for insertAt > 0 && m.entries[insertAt-1].header == nil && strings.TrimSpace(m.entries[insertAt-1].raw) == "" {
		insertAt--
	}
	m.entries = append(m.entries, entry{})
	copy(m.entries[insertAt+1:], m.entries[insertAt:])
	m.entries[insertAt] = entry{header: h}
	m.changed = true
}

// Changed reports whether Set modified the manifest since parsing.
func (m *Manifest) Changed() bool { return m.changed }

// String renders the manifest. Untouched headers keep their original lines.
func (m *Manifest) String() string {
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString(m.eol)
		}
		switch {
		case e.header == nil:
			b.WriteString(e.raw)
		case e.header.dirty:
			b.WriteString(strings.Join(renderHeader(e.header.Name, e.header.Value), m.eol))
		default:
			b.WriteString(strings.Join(e.header.lines, m.eol))
		}
	}
	if len(m.entries) > 0 && (m.finalNewline || m.changed) {
		b.WriteString(m.eol)
	}
	return b.String()
}

func (m *Manifest) find(name string) *Header {
	for _, e := range m.entries {
		if e.header != nil && strings.EqualFold(e.header.Name, name) {
			return e.header
		}
	}
	return nil
}

// renderHeader writes one clause per physical line, Eclipse PDE style,
// wrapping anything longer than the manifest line limit.
func renderHeader(name, value string) []string {
	clauses := SplitClauses(value)
	if len(clauses) == 0 {
		return []string{name + ": "}
	}
	var lines []string
	for i, c := range clauses {
		logical := c
		if i < len(clauses)-1 {
			logical += ","
		}
		if i == 0 {
			lines = append(lines, wrap(name+": "+logical, false)...)
		} else {
			lines = append(lines, wrap(logical, true)...)
		}
	}
	return lines
}

func wrap(s string, continuation bool) []string {
	var lines []string
	first := true
	for {
		limit := maxLineBytes
		prefix := ""
		if continuation || !first {
			prefix = " "
			limit--
		}
		if len(s) <= limit {
			return append(lines, prefix+s)
		}
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		lines = append(lines, prefix+s[:cut])
		s = s[cut:]
		first = false
	}
}

// SplitClauses splits a header value on commas that are outside quoted
// strings and outside version ranges such as [1.0.0,2.0.0).
func SplitClauses(value string) []string {
	var (
		out     []string
		depth   int
		inQuote bool
		start   int
	)
	flush := func(end int) {
		if c := strings.TrimSpace(value[start:end]); c != "" {
			out = append(out, c)
		}
	}
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			inQuote = !inQuote
		case '[', '(':
			if !inQuote {
				depth++
			}
		case ']', ')':
			if !inQuote && depth > 0 {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(value))
	return out
}

// ClauseName returns the package or bundle name of a clause, i.e. the text
// before the first directive or attribute.
func ClauseName(clause string) string {
	name, _, _ := strings.Cut(clause, ";")
	return strings.TrimSpace(name)
}

// Attribute returns the value of an attribute (key=value) or directive
// (key:=value) on a clause, with surrounding quotes removed.
func Attribute(clause, key string) (string, bool) {
	parts := strings.Split(clause, ";")
	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		k = strings.TrimSuffix(strings.TrimSpace(k), ":")
		if strings.EqualFold(k, key) {
			return strings.Trim(strings.TrimSpace(v), `"`), true
		}
	}
	return "", false
}
