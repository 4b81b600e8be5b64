package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// cleanEnv removes settings that would leak from the developer's shell.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"BUNDLESMITH_AI_ENABLED", "BUNDLESMITH_AI_PROVIDER", "BUNDLESMITH_AI_MODEL",
		"BUNDLESMITH_AI_API_KEY_ENV", "BUNDLESMITH_AI_BASE_URL",
		"BUNDLESMITH_PLATFORM_REPOSITORY", "BUNDLESMITH_SKILLS_DIR", "BUNDLESMITH_SESSION_DIR",
		"BUNDLESMITH_GUARDRAIL_CRITICAL_NAMESPACES",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func newPlugin(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "META-INF"), 0o755)
	os.WriteFile(filepath.Join(dir, "META-INF", "MANIFEST.MF"), []byte(
		"Manifest-Version: 1.0\nBundle-SymbolicName: com.acme.erp;singleton:=true\nBundle-Version: 1.0.0\nRequire-Bundle: org.adempiere.base\n"), 0o644)
	return dir
}

// anthropicServer answers every request with text wrapped in a Messages API
// envelope.
func anthropicServer(t *testing.T, text string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("BUNDLESMITH_AI_BASE_URL", srv.URL)
	return srv, &calls
}

func exitCode(err error) int {
	var ee *exitErr
	if errors.As(err, &ee) {
		return ee.code
	}
	return -1
}

func TestAddWithAI(t *testing.T) {
	cleanEnv(t)
	plugin := newPlugin(t)
	reply := "```json\n" + `{"files":[{"path":"src/com/acme/erp/callout/PriceCallout.java","content":"package com.acme.erp.callout;\n\npublic class PriceCallout {}\n"}],"manifest_additions":["Require-Bundle: org.adempiere.base"]}` + "\n```"
	_, calls := anthropicServer(t, reply)
	patchOut := filepath.Join(t.TempDir(), "changes.patch")

	out, err := execute(t, "add", "callout", "price",
		"--dir", plugin,
		"--provider", "anthropic",
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
		"-i", "set the price",
		"--patch-out", patchOut,
	)
	if err != nil {
		t.Fatal(err)
	}
	if *calls != 1 {
		t.Errorf("provider calls = %d", *calls)
	}
	if !strings.Contains(out, "Added callout using AI (anthropic).") {
		t.Errorf("output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(plugin, "src/com/acme/erp/callout/PriceCallout.java")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(patchOut); err == nil {
		t.Error("no header changes, patch file should not be written")
	}
}

func TestAddFallsBackWhenBlocked(t *testing.T) {
	cleanEnv(t)
	plugin := newPlugin(t)
	anthropicServer(t, `{"files":[{"path":"../../../etc/passwd","content":"x"}]}`)
	patchOut := filepath.Join(t.TempDir(), "changes.patch")

	out, err := execute(t, "add", "activator", "erp",
		"--dir", plugin,
		"--provider", "anthropic",
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
		"--patch-out", patchOut,
	)
	if err != nil {
		t.Fatalf("AI rejection must not fail the command: %v", err)
	}
	for _, want := range []string{"Added activator from template.", "guardrail blocked", "  BLOCKER: Path traversal detected: ../../../etc/passwd", "Rejected AI output saved for review:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(plugin, "src/com/acme/erp/ErpActivator.java")); err != nil {
		t.Error(err)
	}
	mf, _ := os.ReadFile(filepath.Join(plugin, "META-INF", "MANIFEST.MF"))
	if !strings.Contains(string(mf), "Bundle-Activator: com.acme.erp.ErpActivator") {
		t.Errorf("manifest:\n%s", mf)
	}
	data, err := os.ReadFile(patchOut)
	if err != nil {
		t.Fatalf("patch file: %v", err)
	}
	if !strings.Contains(string(data), "+++ b/META-INF/MANIFEST.MF") {
		t.Errorf("patch:\n%s", data)
	}
}

func TestAddNoAI(t *testing.T) {
	cleanEnv(t)
	plugin := newPlugin(t)
	_, calls := anthropicServer(t, "unused")

	out, err := execute(t, "add", "model-validator", "order",
		"--dir", plugin, "--no-ai", "--provider", "anthropic",
		"--config", filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if *calls != 0 {
		t.Error("--no-ai must not call the provider")
	}
	if !strings.Contains(out, "from template") || !strings.Contains(out, "OrderValidator.java") {
		t.Errorf("output:\n%s", out)
	}
}

func TestAddInputErrors(t *testing.T) {
	cleanEnv(t)
	plugin := newPlugin(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "add", "widget", "x", "--dir", plugin, "--config", cfg)
	if exitCode(err) != exitInput {
		t.Errorf("unknown type: err = %v", err)
	}
	_, err = execute(t, "add", "callout", "x", "--dir", plugin, "--config", cfg, "--param", "novalue")
	if exitCode(err) != exitInput {
		t.Errorf("bad param: err = %v", err)
	}
	_, err = execute(t, "add", "callout", "x", "--dir", filepath.Join(plugin, "missing"), "--config", cfg, "--no-ai")
	if err == nil {
		t.Error("missing plugin dir should fail")
	}
}

func TestTypes(t *testing.T) {
	out, err := execute(t, "types")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"callout-factory", "rest-extension", "integration-test"} {
		if !strings.Contains(out, want) {
			t.Errorf("types missing %q", want)
		}
	}
	long, _ := execute(t, "types", "--long")
	if !strings.Contains(long, "SvrProcess") {
		t.Error("--long should include descriptions")
	}
}

func TestConfigSetGet(t *testing.T) {
	cleanEnv(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := execute(t, "config", "set", "ai.provider", "gemini", "--config", cfg); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "config", "get", "ai.provider", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "gemini" {
		t.Errorf("get = %q", out)
	}
	list, _ := execute(t, "config", "list", "--config", cfg)
	if !strings.Contains(list, "ai.enabled=true") || !strings.Contains(list, "ai.provider=gemini") {
		t.Errorf("list:\n%s", list)
	}
	if _, err := execute(t, "config", "set", "nope", "x", "--config", cfg); exitCode(err) != exitInput {
		t.Errorf("unknown key: err = %v", err)
	}
}

func TestAnalyze(t *testing.T) {
	plugin := newPlugin(t)
	out, err := execute(t, "analyze", "--dir", plugin)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["plugin_id"] != "com.acme.erp" {
		t.Errorf("plugin_id = %v", got["plugin_id"])
	}
	if _, ok := got["ManifestText"]; ok {
		t.Error("raw manifest should not be printed")
	}
}

func TestAICheck(t *testing.T) {
	cleanEnv(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "ai", "check", "--config", cfg, "--dir", t.TempDir())
	if exitCode(err) != exitProvider {
		t.Errorf("no provider: err = %v", err)
	}

	anthropicServer(t, "OK")
	out, err := execute(t, "ai", "check", "--config", cfg, "--dir", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "anthropic: OK" {
		t.Errorf("output = %q", out)
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"table=C_Order", " column = GrandTotal ", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	if got["table"] != "C_Order" || got["column"] != "GrandTotal" || got["empty"] != "" {
		t.Errorf("got %v", got)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) should fail", bad)
		}
	}
	if got, _ := parseParams(nil); got != nil {
		t.Error("nil input should give nil map")
	}
}

func TestSessions(t *testing.T) {
	cleanEnv(t)
	plugin := newPlugin(t)
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "sessions", "list", "--dir", plugin, "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "No sessions in ") {
		t.Errorf("empty list: %q", out)
	}
	if _, err := execute(t, "sessions", "show", "--dir", plugin, "--config", cfg); exitCode(err) != exitInput {
		t.Errorf("show with no sessions: err = %v", err)
	}

	if _, err := execute(t, "add", "callout", "price", "--dir", plugin, "--no-ai", "--config", cfg); err != nil {
		t.Fatal(err)
	}

	out, err = execute(t, "sessions", "list", "--dir", plugin, "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "callout price") || !strings.Contains(out, "FALLBACK_APPLIED") {
		t.Errorf("list:\n%s", out)
	}

	out, err = execute(t, "sessions", "show", "--dir", plugin, "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "# callout price") || !strings.Contains(out, "AI generation is disabled") {
		t.Errorf("show:\n%s", out)
	}
}

func TestAddReportsUnusableRepository(t *testing.T) {
	cleanEnv(t)
	plugin := newPlugin(t)
	reply := `{"files":[{"path":"src/com/acme/erp/callout/PriceCallout.java","content":"package com.acme.erp.callout;\n\nimport org.compiere.model.MFabricated;\n\npublic class PriceCallout {}\n"}]}`
	anthropicServer(t, reply)
	repo := filepath.Join(t.TempDir(), "no-such-repository")

	out, err := execute(t, "add", "callout", "price",
		"--dir", plugin,
		"--provider", "anthropic",
		"--repository", repo,
		"--config", filepath.Join(t.TempDir(), "config.yaml"),
	)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Added callout from template.") || !strings.Contains(out, "BLOCKER: Critical imports not verified") {
		t.Errorf("output:\n%s", out)
	}
}
