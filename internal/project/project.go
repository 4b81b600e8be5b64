// Package project builds a read-only snapshot of an existing plugin bundle:
// its manifest identity, target platform version and the Java types and
// structural patterns already present in its source tree.
package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/bundlesmith/internal/javasrc"
	"github.com/dshills/bundlesmith/internal/manifest"
)

const (
	// SourceDir is the Java source root relative to the plugin directory.
	SourceDir = "src"

	buildPropertiesFile = "build.properties"
	pomFile             = "pom.xml"
	baseBundle          = "org.adempiere.base"
)

// Structural markers. Each is matched against whole source files.
var (
	activatorRe      = regexp.MustCompile(`\bextends\s+(?:[\w.]+\.)?(?:Incremental2PackActivator|AdempiereActivator|Plugin)\b|\bimplements\s+(?:[\w.,\s]+,\s*)?(?:[\w.]+\.)?BundleActivator\b`)
	calloutFactoryRe = regexp.MustCompile(`\bimplements\s+(?:[\w.,\s]+,\s*)?(?:[\w.]+\.)?IColumnCalloutFactory\b`)
	eventManagerRe   = regexp.MustCompile(`\bextends\s+(?:[\w.]+\.)?AbstractEventHandler\b|\bIEventManager\b`)
	annotationRe     = regexp.MustCompile(`(?m)^\s*@(?:Callout|Process|EventTopicDelegate|ModelEventTopic|Form|Model)\b`)
)

// Context is the analyzed state of a plugin. It is built once per run and
// not modified afterward.
type Context struct {
	Dir                 string   `json:"dir"`
	PluginID            string   `json:"plugin_id"`
	BasePackage         string   `json:"base_package"`
	Version             string   `json:"version"`
	ManifestText        string   `json:"-"`
	BuildPropertiesText string   `json:"-"`
	PlatformVersion     string   `json:"platform_version,omitempty"`
	ToolchainVersion    string   `json:"toolchain_version,omitempty"`
	RequiredBundles     []string `json:"required_bundles"`
	ExistingTypes       []string `json:"existing_types"`
	HasActivator        bool     `json:"has_activator"`
	HasCalloutFactory   bool     `json:"has_callout_factory"`
	HasEventManager     bool     `json:"has_event_manager"`
	UsesAnnotations     bool     `json:"uses_annotations"`
}

// HasManifest reports whether the plugin has a readable manifest identity.
func (c *Context) HasManifest() bool { return c.PluginID != "" }

// HasType reports whether a top-level type with the given simple name exists.
func (c *Context) HasType(name string) bool {
	i := sort.SearchStrings(c.ExistingTypes, name)
	return i < len(c.ExistingTypes) && c.ExistingTypes[i] == name
}

// Analyze reads pluginDir. A missing manifest yields a context with an empty
// PluginID; only a missing or unreadable plugin directory is an error.
func Analyze(pluginDir string) (*Context, error) {
	info, err := os.Stat(pluginDir)
	if err != nil {
		return nil, fmt.Errorf("project.Analyze: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project.Analyze: %s is not a directory", pluginDir)
	}

	c := &Context{Dir: pluginDir}

	mfText, err := readOptional(filepath.Join(pluginDir, filepath.FromSlash(manifest.Path)))
	if err != nil {
		return nil, fmt.Errorf("project.Analyze: %w", err)
	}
	c.ManifestText = mfText
	if mfText != "" {
		c.applyManifest(manifest.Parse(mfText))
	}

	if c.BuildPropertiesText, err = readOptional(filepath.Join(pluginDir, buildPropertiesFile)); err != nil {
		return nil, fmt.Errorf("project.Analyze: %w", err)
	}

	pom, err := readOptional(filepath.Join(pluginDir, pomFile))
	if err != nil {
		return nil, fmt.Errorf("project.Analyze: %w", err)
	}
	if pom != "" {
		platform, toolchain := pomVersions(pom)
		if platform != "" {
			c.PlatformVersion = platform
		}
		c.ToolchainVersion = toolchain
	}

	if err := c.scanSources(filepath.Join(pluginDir, SourceDir)); err != nil {
		return nil, fmt.Errorf("project.Analyze: %w", err)
	}
	return c, nil
}

func (c *Context) applyManifest(m *manifest.Manifest) {
	if v, ok := m.Get(manifest.HeaderSymbolicName); ok {
		c.PluginID = manifest.ClauseName(v)
	}
	if v, ok := m.Get(manifest.HeaderVersion); ok {
		c.Version = strings.TrimSpace(v)
	}
	if v, ok := m.Get(manifest.HeaderRequireBundle); ok {
		for _, clause := range manifest.SplitClauses(v) {
			name := manifest.ClauseName(clause)
			c.RequiredBundles = append(c.RequiredBundles, name)
			if name == baseBundle {
				if bv, ok := manifest.Attribute(clause, "bundle-version"); ok {
					c.PlatformVersion = NormalizeVersion(bv)
				}
			}
		}
	}

	c.BasePackage = c.PluginID
	if v, ok := m.Get(manifest.HeaderActivator); ok {
		if i := strings.LastIndex(strings.TrimSpace(v), "."); i > 0 {
			c.BasePackage = strings.TrimSpace(v)[:i]
		}
	}
}

func (c *Context) scanSources(root string) error {
	seen := make(map[string]bool)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".java" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		src := string(data)
		for _, name := range javasrc.TopLevelTypes(src) {
			seen[name] = true
		}
		c.HasActivator = c.HasActivator || activatorRe.MatchString(src)
		c.HasCalloutFactory = c.HasCalloutFactory || calloutFactoryRe.MatchString(src)
		c.HasEventManager = c.HasEventManager || eventManagerRe.MatchString(src)
		c.UsesAnnotations = c.UsesAnnotations || annotationRe.MatchString(src)
		return nil
	})
	if err != nil {
		return err
	}

	c.ExistingTypes = make([]string, 0, len(seen))
	for name := range seen {
		c.ExistingTypes = append(c.ExistingTypes, name)
	}
	sort.Strings(c.ExistingTypes)
	return nil
}

type pomProject struct {
	Version string `xml:"version"`
	Parent  struct {
		Version string `xml:"version"`
	} `xml:"parent"`
	Properties struct {
		Entries []pomProperty `xml:",any"`
	} `xml:"properties"`
}

type pomProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// pomVersions returns the platform and Tycho versions declared by a Maven
// descriptor. Unparseable descriptors yield empty strings.
func pomVersions(text string) (platform, toolchain string) {
	var p pomProject
	if err := xml.Unmarshal([]byte(text), &p); err != nil {
		return "", ""
	}
	for _, prop := range p.Properties.Entries {
		switch prop.XMLName.Local {
		case "idempiere.version":
			platform = NormalizeVersion(prop.Value)
		case "tycho.version", "tycho-version":
			toolchain = NormalizeVersion(prop.Value)
		}
	}
	if platform == "" {
		platform = NormalizeVersion(p.Parent.Version)
	}
	return platform, toolchain
}

// NormalizeVersion converts an OSGi version or version range to a semantic
// version string. For a range the lower bound is used; qualifiers beyond the
// third segment are dropped. It returns "" when no version can be read.
func NormalizeVersion(v string) string {
	v = strings.Trim(strings.TrimSpace(v), `"[(`)
	if lower, _, ok := strings.Cut(v, ","); ok {
		v = lower
	}
	v = strings.Trim(v, `)] `)
	if v == "" || strings.HasPrefix(v, "${") {
		return ""
	}
	segs := strings.SplitN(v, ".", 4)
	if len(segs) > 3 {
		segs = segs[:3]
	}
	sv, err := semver.NewVersion(strings.Join(segs, "."))
	if err != nil {
		return ""
	}
	return sv.String()
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
