package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/bundlesmith/internal/guardrail"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range Keys() {
		t.Setenv("BUNDLESMITH_"+strings.ToUpper(strings.ReplaceAll(k, ".", "_")), "")
		os.Unsetenv("BUNDLESMITH_" + strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatal(err)
	}
	if !c.AIEnabled {
		t.Error("AI should be enabled by default")
	}
	if c.AIProvider != "" || c.PlatformRepository != "" {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if !reflect.DeepEqual(c.CriticalNamespaces, guardrail.DefaultCriticalPrefixes) {
		t.Errorf("CriticalNamespaces = %v", c.CriticalNamespaces)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(file, []byte(`ai:
  enabled: false
  provider: openai
  model: gpt-4.1
platform:
  repository: /opt/idempiere/p2
guardrail:
  critical_namespaces:
    - org.compiere.
    - com.vendor.
`), 0o644)

	c, err := Load(Options{File: file})
	if err != nil {
		t.Fatal(err)
	}
	if c.AIEnabled || c.AIProvider != "openai" || c.AIModel != "gpt-4.1" {
		t.Errorf("ai settings = %+v", c)
	}
	if c.PlatformRepository != "/opt/idempiere/p2" {
		t.Errorf("repository = %q", c.PlatformRepository)
	}
	if want := []string{"org.compiere.", "com.vendor."}; !reflect.DeepEqual(c.CriticalNamespaces, want) {
		t.Errorf("namespaces = %v", c.CriticalNamespaces)
	}

	t.Setenv("BUNDLESMITH_AI_PROVIDER", "gemini")
	t.Setenv("BUNDLESMITH_AI_ENABLED", "true")
	t.Setenv("BUNDLESMITH_GUARDRAIL_CRITICAL_NAMESPACES", "org.osgi.,org.idempiere.")
	c, err = Load(Options{File: file})
	if err != nil {
		t.Fatal(err)
	}
	if !c.AIEnabled || c.AIProvider != "gemini" {
		t.Errorf("env override not applied: %+v", c)
	}
	if want := []string{"org.osgi.", "org.idempiere."}; !reflect.DeepEqual(c.CriticalNamespaces, want) {
		t.Errorf("namespaces = %v", c.CriticalNamespaces)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(file, []byte("ai: [unclosed"), 0o644)
	if _, err := Load(Options{File: file}); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
	plugin := t.TempDir()
	os.WriteFile(filepath.Join(plugin, ".env"), []byte("ANTHROPIC_API_KEY=from-dotenv-file\n# comment\n"), 0o644)

	c, err := Load(Options{File: filepath.Join(t.TempDir(), "none.yaml"), PluginDir: plugin})
	if err != nil {
		t.Fatal(err)
	}
	if c.Env["ANTHROPIC_API_KEY"] != "from-dotenv-file" {
		t.Errorf("Env = %v", c.Env)
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		t.Error("process environment must not be modified")
	}
	pc := c.ProviderConfig()
	if pc.Env["ANTHROPIC_API_KEY"] != "from-dotenv-file" || !pc.Enabled {
		t.Errorf("ProviderConfig = %+v", pc)
	}
	if secrets := c.Secrets(); len(secrets) != 1 || secrets[0] != "from-dotenv-file" {
		t.Errorf("Secrets = %v", secrets)
	}
}

func TestSetPersistsAndPreserves(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := Set(file, "ai.provider", "anthropic"); err != nil {
		t.Fatal(err)
	}
	if err := Set(file, "AI.ENABLED", "false"); err != nil {
		t.Fatal(err)
	}
	if err := Set(file, "guardrail.critical_namespaces", "org.compiere., org.osgi."); err != nil {
		t.Fatal(err)
	}

	c, err := Load(Options{File: file})
	if err != nil {
		t.Fatal(err)
	}
	if c.AIProvider != "anthropic" || c.AIEnabled {
		t.Errorf("persisted settings = %+v", c)
	}
	if want := []string{"org.compiere.", "org.osgi."}; !reflect.DeepEqual(c.CriticalNamespaces, want) {
		t.Errorf("namespaces = %v", c.CriticalNamespaces)
	}
	got, err := c.Get("ai.provider")
	if err != nil || got != "anthropic" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestSetRejectsBadInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := Set(file, "ai.colour", "blue"); err == nil {
		t.Error("expected unknown key error")
	}
	if err := Set(file, "ai.enabled", "maybe"); err == nil {
		t.Error("expected bool parse error")
	}
	if _, err := os.Stat(file); err == nil {
		t.Error("rejected values must not create the file")
	}
}

func TestGuardrailOptions(t *testing.T) {
	c := &Config{PlatformRepository: "/repo", CriticalNamespaces: []string{"org.x."}}
	opts := c.GuardrailOptions()
	if opts.RepositoryDir != "/repo" || len(opts.CriticalPrefixes) != 1 {
		t.Errorf("opts = %+v", opts)
	}
}
