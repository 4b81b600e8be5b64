// Package prompt builds the provider-agnostic LLM prompt for component
// generation.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/bundlesmith/internal/component"
	"github.com/dshills/bundlesmith/internal/project"
	"github.com/dshills/bundlesmith/internal/skill"
)

// InstructionParam is the parameter key carrying the user's free-text intent.
const InstructionParam = "instruction"

// Opts configures prompt construction.
type Opts struct {
	Skill         *skill.Skill
	Context       *project.Context
	ComponentType string
	ComponentName string
	Params        map[string]string
}

// Build assembles the full prompt. The output depends only on opts.
func Build(opts Opts) string {
	var b strings.Builder
	ctx := opts.Context
	if ctx == nil {
		ctx = &project.Context{}
	}
	typ, _ := component.Lookup(opts.ComponentType)

	// 1. Preamble
	b.WriteString(`You are an expert iDempiere plugin developer. Generate the Java source and OSGi metadata for one new component of an existing plugin bundle.

`)

	// 2. Instructions: skill text verbatim, or the built-in description
	b.WriteString("## Instructions\n\n")
	switch {
	case opts.Skill != nil && strings.TrimSpace(opts.Skill.Body) != "":
		b.WriteString(opts.Skill.Body)
		b.WriteString("\n\n")
	case typ != nil:
		fmt.Fprintf(&b, "%s\n\n", typ.Description)
	default:
		fmt.Fprintf(&b, "Generate a component of type %q.\n\n", opts.ComponentType)
	}

	// 3. Target
	b.WriteString("## Target\n\n")
	fmt.Fprintf(&b, "- Component type: %s\n", opts.ComponentType)
	fmt.Fprintf(&b, "- Component name: %s\n", opts.ComponentName)
	if typ != nil {
		fmt.Fprintf(&b, "- Class name: %s\n", typ.ClassName(opts.ComponentName))
		if pkg := typ.Package(ctx.BasePackage); pkg != "" {
			fmt.Fprintf(&b, "- Java package: %s\n", pkg)
		}
	}
	fmt.Fprintf(&b, "- Plugin ID: %s\n", valueOr(ctx.PluginID, "(unknown)"))
	fmt.Fprintf(&b, "- Base package: %s\n", valueOr(ctx.BasePackage, "(unknown)"))
	if ctx.PlatformVersion != "" {
		fmt.Fprintf(&b, "- Platform version: %s\n", ctx.PlatformVersion)
	}
	b.WriteString("\n")

	// 4. Project structure
	b.WriteString("## Project Structure\n\n")
	fmt.Fprintf(&b, "- Has activator: %t\n", ctx.HasActivator)
	fmt.Fprintf(&b, "- Has callout factory: %t\n", ctx.HasCalloutFactory)
	fmt.Fprintf(&b, "- Has event manager: %t\n", ctx.HasEventManager)
	fmt.Fprintf(&b, "- Uses annotations: %t\n", ctx.UsesAnnotations)
	if len(ctx.RequiredBundles) > 0 {
		fmt.Fprintf(&b, "- Required bundles: %s\n", strings.Join(ctx.RequiredBundles, ", "))
	}
	if len(ctx.ExistingTypes) > 0 {
		fmt.Fprintf(&b, "- Existing types: %s\n", strings.Join(ctx.ExistingTypes, ", "))
	} else {
		b.WriteString("- Existing types: none\n")
	}
	b.WriteString("\n")

	// 5. Extra parameters, business intent first
	if len(opts.Params) > 0 {
		b.WriteString("## Parameters\n\n")
		if intent := strings.TrimSpace(opts.Params[InstructionParam]); intent != "" {
			fmt.Fprintf(&b, "Business intent: %s\n\n", intent)
		}
		keys := make([]string, 0, len(opts.Params))
		for k := range opts.Params {
			if k != InstructionParam {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, opts.Params[k])
		}
		if len(keys) > 0 {
			b.WriteString("\n")
		}
	}

	// 6. Output contract
	b.WriteString(outputContract)
	return b.String()
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

const outputContract = `## Output Format

Respond with ONLY a JSON object. No markdown, no prose outside JSON.

{
  "files": [{"path": string, "content": string}],
  "manifest_additions": [string],
  "build_properties_additions": [string]
}

Rules:

1. File paths are relative to the plugin root, use forward slashes and never contain "..". Java sources go under src/ in the directory matching their package.
2. Do not overwrite existing types unless the instructions ask for it.
3. Only import classes that exist in the target platform version. Do not invent framework classes or packages.
4. manifest_additions entries are "Header: value" (for example "Require-Bundle: org.adempiere.base" or "Import-Package: org.osgi.service.event"); an entry without a header is added to Import-Package. Only Import-Package, Require-Bundle, Export-Package and Service-Component may be named.
5. build_properties_additions entries are complete property lines.
6. Return at least one file.
`
