package project

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const testManifest = `Manifest-Version: 1.0
Bundle-ManifestVersion: 2
Bundle-SymbolicName: com.acme.erp;singleton:=true
Bundle-Version: 1.2.0.qualifier
Bundle-Activator: com.acme.erp.base.Activator
Require-Bundle: org.adempiere.base;bundle-version="[11.0.0,12.0.0)",
 org.adempiere.plugin.utils
`

func TestAnalyzeFullPlugin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "META-INF/MANIFEST.MF", testManifest)
	writeFile(t, dir, "build.properties", "source.. = src/\nbin.includes = META-INF/,.\n")
	writeFile(t, dir, "src/com/acme/erp/base/Activator.java", `package com.acme.erp.base;

import org.adempiere.plugin.utils.Incremental2PackActivator;

public class Activator extends Incremental2PackActivator {}
`)
	writeFile(t, dir, "src/com/acme/erp/callout/CalloutFactory.java", `package com.acme.erp.callout;

public class CalloutFactory implements IColumnCalloutFactory {}
`)
	writeFile(t, dir, "src/com/acme/erp/event/OrderEvents.java", `package com.acme.erp.event;

public class OrderEvents extends AbstractEventHandler {}
`)
	writeFile(t, dir, "src/com/acme/erp/process/Recalc.java", `package com.acme.erp.process;

@Process(name = "Recalc")
public class Recalc extends SvrProcess {}
`)
	writeFile(t, dir, "src/README.txt", "class NotJava {}")

	c, err := Analyze(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.PluginID != "com.acme.erp" {
		t.Errorf("PluginID = %q", c.PluginID)
	}
	if c.BasePackage != "com.acme.erp.base" {
		t.Errorf("BasePackage = %q", c.BasePackage)
	}
	if c.Version != "1.2.0.qualifier" {
		t.Errorf("Version = %q", c.Version)
	}
	if c.PlatformVersion != "11.0.0" {
		t.Errorf("PlatformVersion = %q", c.PlatformVersion)
	}
	if want := []string{"org.adempiere.base", "org.adempiere.plugin.utils"}; !reflect.DeepEqual(c.RequiredBundles, want) {
		t.Errorf("RequiredBundles = %v", c.RequiredBundles)
	}
	if want := []string{"Activator", "CalloutFactory", "OrderEvents", "Recalc"}; !reflect.DeepEqual(c.ExistingTypes, want) {
		t.Errorf("ExistingTypes = %v", c.ExistingTypes)
	}
	if !c.HasActivator || !c.HasCalloutFactory || !c.HasEventManager || !c.UsesAnnotations {
		t.Errorf("flags = %+v", c)
	}
	if c.BuildPropertiesText == "" {
		t.Error("build.properties not read")
	}
	if !c.HasType("Recalc") || c.HasType("NotJava") {
		t.Error("HasType mismatch")
	}
}

func TestAnalyzeMissingManifest(t *testing.T) {
	dir := t.TempDir()
	c, err := Analyze(dir)
	if err != nil {
		t.Fatalf("missing manifest must not be an error: %v", err)
	}
	if c.HasManifest() || c.PluginID != "" {
		t.Errorf("expected empty identity, got %q", c.PluginID)
	}
	if len(c.ExistingTypes) != 0 || c.HasActivator {
		t.Errorf("unexpected source state: %+v", c)
	}
}

func TestAnalyzeBasePackageWithoutActivator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "META-INF/MANIFEST.MF", "Manifest-Version: 1.0\nBundle-SymbolicName: org.example.plugin\n")
	c, err := Analyze(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.BasePackage != "org.example.plugin" {
		t.Errorf("BasePackage = %q", c.BasePackage)
	}
}

func TestAnalyzePomVersions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "META-INF/MANIFEST.MF", testManifest)
	writeFile(t, dir, "pom.xml", `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <parent>
    <groupId>org.idempiere</groupId>
    <version>10.0.0-SNAPSHOT</version>
  </parent>
  <properties>
    <tycho.version>4.0.4</tycho.version>
    <idempiere.version>12.0.0-SNAPSHOT</idempiere.version>
  </properties>
</project>
`)
	c, err := Analyze(dir)
	if err != nil {
		t.Fatal(err)
	}
	if c.PlatformVersion != "12.0.0-SNAPSHOT" {
		t.Errorf("PlatformVersion = %q", c.PlatformVersion)
	}
	if c.ToolchainVersion != "4.0.4" {
		t.Errorf("ToolchainVersion = %q", c.ToolchainVersion)
	}
}

func TestAnalyzeNotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file", "x")
	if _, err := Analyze(filepath.Join(dir, "file")); err == nil {
		t.Error("expected error for a regular file")
	}
	if _, err := Analyze(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct{ in, want string }{
		{"11.0.0.qualifier", "11.0.0"},
		{`"[11.0.0,12.0.0)"`, "11.0.0"},
		{"10", "10.0.0"},
		{"12.0.0-SNAPSHOT", "12.0.0-SNAPSHOT"},
		{"${project.version}", ""},
		{"", ""},
		{"latest", ""},
	}
	for _, tt := range tests {
		if got := NormalizeVersion(tt.in); got != tt.want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
