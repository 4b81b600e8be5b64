// Package component holds the catalog of component types a plugin can be
// extended with.
package component

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Reference is a service dependency injected through a declarative
// services component.
type Reference struct {
	Interface string `yaml:"interface"`
	Bind      string `yaml:"bind"`
	Unbind    string `yaml:"unbind"`
}

// Type describes one component type.
type Type struct {
	Name                     string     `yaml:"name"`
	Title                    string     `yaml:"title"`
	Description              string     `yaml:"description"`
	Subpackage               string     `yaml:"subpackage"`
	Suffix                   string     `yaml:"suffix"`
	Extends                  string     `yaml:"extends"`
	Implements               []string   `yaml:"implements"`
	Imports                  []string   `yaml:"imports"`
	Annotations              []string   `yaml:"annotations"`
	Service                  string     `yaml:"service"`
	Reference                *Reference `yaml:"reference"`
	ManifestAdditions        []string   `yaml:"manifest_additions"`
	BuildPropertiesAdditions []string   `yaml:"build_properties_additions"`
	Body                     string     `yaml:"body"`
}

// NeedsComponentXML reports whether the type is registered through an
// OSGI-INF component descriptor.
func (t *Type) NeedsComponentXML() bool {
	return t.Service != "" || t.Reference != nil
}

type catalogFile struct {
	Types []Type `yaml:"types"`
}

var (
	loadOnce sync.Once
	byName   map[string]*Type
	ordered  []*Type
	loadErr  error
)

func load() error {
	loadOnce.Do(func() {
		var f catalogFile
		if err := yaml.Unmarshal(catalogYAML, &f); err != nil {
			loadErr = fmt.Errorf("component: parse catalog: %w", err)
			return
		}
		byName = make(map[string]*Type, len(f.Types))
		for i := range f.Types {
			t := &f.Types[i]
			if _, dup := byName[t.Name]; dup {
				loadErr = fmt.Errorf("component: duplicate type %q", t.Name)
				return
			}
			byName[t.Name] = t
			ordered = append(ordered, t)
		}
	})
	return loadErr
}

// Lookup returns the catalog entry for name. Names are matched
// case-insensitively and underscores are accepted for hyphens.
func Lookup(name string) (*Type, error) {
	if err := load(); err != nil {
		return nil, err
	}
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	t, ok := byName[key]
	if !ok {
		return nil, fmt.Errorf("unknown component type %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

// Known reports whether name is a catalog type.
func Known(name string) bool {
	_, err := Lookup(name)
	return err == nil
}

// Types returns all catalog entries in catalog order.
func Types() []*Type {
	if err := load(); err != nil {
		return nil
	}
	return ordered
}

// Names returns the sorted type names.
func Names() []string {
	types := Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// ClassName converts a free-form component name ("order line", "order-line",
// "orderLine") to a Java class name carrying the type's suffix.
func (t *Type) ClassName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(title.String(w))
	}
	class := b.String()
	if class == "" {
		class = "New"
	}
	if class[0] >= '0' && class[0] <= '9' {
		class = "C" + class
	}
	if t.Suffix != "" && !strings.HasSuffix(class, t.Suffix) {
		class += t.Suffix
	}
	return class
}

// Package returns the Java package for the type under basePackage.
func (t *Type) Package(basePackage string) string {
	switch {
	case basePackage == "":
		return t.Subpackage
	case t.Subpackage == "":
		return basePackage
	default:
		return basePackage + "." + t.Subpackage
	}
}
