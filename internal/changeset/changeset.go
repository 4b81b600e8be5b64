// Package changeset defines the structured code change-set produced by AI
// generation or the fallback templates, and parses it out of raw model text.
package changeset

// File is one generated file, path relative to the plugin root using
// forward slashes.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GeneratedCode is a complete change-set. It is built once and treated as
// read-only by the validator and the merge engine.
type GeneratedCode struct {
	Files                    []File   `json:"files"`
	ManifestAdditions        []string `json:"manifest_additions,omitempty"`
	BuildPropertiesAdditions []string `json:"build_properties_additions,omitempty"`
}

// Paths returns the file paths in order.
func (g *GeneratedCode) Paths() []string {
	paths := make([]string, 0, len(g.Files))
	for _, f := range g.Files {
		paths = append(paths, f.Path)
	}
	return paths
}
