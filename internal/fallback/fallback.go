// Package fallback generates a minimal, known-good component from the
// catalog without AI. It is the pipeline's guaranteed path.
package fallback

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"
	"unicode"

	"github.com/dshills/bundlesmith/internal/changeset"
	"github.com/dshills/bundlesmith/internal/component"
	"github.com/dshills/bundlesmith/internal/manifest"
	"github.com/dshills/bundlesmith/internal/project"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"join":    strings.Join,
	"refName": refName,
}).ParseFS(templateFS, "templates/*.tmpl"))

// Data holds the variables available to templates and catalog bodies.
type Data struct {
	Package        string
	Class          string
	QualifiedClass string
	Name           string
	Path           string
	PluginID       string
	Title          string
	Extends        string
	Implements     []string
	Imports        []string
	Annotations    []string
	Body           string
	Service        string
	Reference      *component.Reference
}

// Generate renders the fallback change-set for typeName. ctx may be partial;
// a nil ctx is treated as an empty project.
func Generate(ctx *project.Context, typeName, name string) (*changeset.GeneratedCode, error) {
	typ, err := component.Lookup(typeName)
	if err != nil {
		return nil, fmt.Errorf("fallback.Generate: %w", err)
	}
	if ctx == nil {
		ctx = &project.Context{}
	}

	d := &Data{
		Package:    typ.Package(ctx.BasePackage),
		Class:      typ.ClassName(name),
		Name:       name,
		Path:       resourcePath(name),
		PluginID:   ctx.PluginID,
		Title:      typ.Title,
		Extends:    typ.Extends,
		Implements: typ.Implements,
		Imports:    typ.Imports,
		Service:    typ.Service,
		Reference:  typ.Reference,
	}
	if d.PluginID == "" {
		d.PluginID = "this plugin"
	}
	d.QualifiedClass = d.Class
	if d.Package != "" {
		d.QualifiedClass = d.Package + "." + d.Class
	}

	for i, a := range typ.Annotations {
		s, err := renderString(fmt.Sprintf("%s.annotation%d", typ.Name, i), a, d)
		if err != nil {
			return nil, fmt.Errorf("fallback.Generate: %w", err)
		}
		d.Annotations = append(d.Annotations, s)
	}
	body, err := renderString(typ.Name+".body", typ.Body, d)
	if err != nil {
		return nil, fmt.Errorf("fallback.Generate: %w", err)
	}
	d.Body = indent(body)

	src, err := render("class.java.tmpl", d)
	if err != nil {
		return nil, fmt.Errorf("fallback.Generate: %w", err)
	}

	code := &changeset.GeneratedCode{
		Files: []changeset.File{{
			Path:    path.Join(project.SourceDir, strings.ReplaceAll(d.Package, ".", "/"), d.Class+".java"),
			Content: src,
		}},
		ManifestAdditions:        append([]string(nil), typ.ManifestAdditions...),
		BuildPropertiesAdditions: append([]string(nil), typ.BuildPropertiesAdditions...),
	}

	if typ.NeedsComponentXML() {
		xml, err := render("component.xml.tmpl", d)
		if err != nil {
			return nil, fmt.Errorf("fallback.Generate: %w", err)
		}
		code.Files = append(code.Files, changeset.File{
			Path:    "OSGI-INF/" + d.QualifiedClass + ".xml",
			Content: xml,
		})
	}

	if typ.Name == "activator" && !ctx.HasActivator {
		if _, ok := manifest.Parse(ctx.ManifestText).Get(manifest.HeaderActivator); !ok {
			code.ManifestAdditions = append(code.ManifestAdditions, manifest.HeaderActivator+": "+d.QualifiedClass)
		}
	}
	return code, nil
}

func render(name string, d *Data) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, d); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderString(name, text string, d *Data) (string, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}

// indent shifts a class body one level and converts four-space indentation
// to tabs.
func indent(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		trimmed := strings.TrimLeft(line, " ")
		depth := (len(line) - len(trimmed)) / 4
		b.WriteString(strings.Repeat("\t", depth+1))
		b.WriteString(trimmed)
		b.WriteString("\n")
	}
	return b.String()
}

// resourcePath turns a component name into a lower-case URL segment.
func resourcePath(name string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	for i, r := range name {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && len(cur) > 0 && !unicode.IsUpper(cur[len(cur)-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return strings.Join(words, "-")
}

func refName(iface string) string {
	return iface[strings.LastIndex(iface, ".")+1:]
}
