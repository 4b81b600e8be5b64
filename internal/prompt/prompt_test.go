package prompt

import (
	"strings"
	"testing"

	"github.com/dshills/bundlesmith/internal/project"
	"github.com/dshills/bundlesmith/internal/skill"
)

func testContext() *project.Context {
	return &project.Context{
		PluginID:          "com.acme.erp",
		BasePackage:       "com.acme.erp",
		PlatformVersion:   "11.0.0",
		RequiredBundles:   []string{"org.adempiere.base"},
		ExistingTypes:     []string{"Activator", "OrderCallout"},
		HasActivator:      true,
		HasCalloutFactory: true,
	}
}

func TestBuild(t *testing.T) {
	text := Build(Opts{
		Context:       testContext(),
		ComponentType: "callout",
		ComponentName: "order line",
	})

	checks := []string{
		"## Instructions",
		"IColumnCallout",
		"- Class name: OrderLineCallout",
		"- Java package: com.acme.erp.callout",
		"- Plugin ID: com.acme.erp",
		"- Platform version: 11.0.0",
		"- Has activator: true",
		"- Has event manager: false",
		"- Existing types: Activator, OrderCallout",
		"Respond with ONLY a JSON object",
		`"manifest_additions"`,
		`"build_properties_additions"`,
	}
	for _, want := range checks {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(text, "## Parameters") {
		t.Error("parameters section should be omitted without params")
	}
}

func TestBuildSkillReplacesDescription(t *testing.T) {
	s := &skill.Skill{Body: "CUSTOM HOUSE RULES\n  indented line"}
	text := Build(Opts{Skill: s, Context: testContext(), ComponentType: "callout", ComponentName: "x"})
	if !strings.Contains(text, "CUSTOM HOUSE RULES\n  indented line") {
		t.Error("skill text not embedded verbatim")
	}
	if strings.Contains(text, "reacts to a field value change") {
		t.Error("built-in description should be replaced by the skill")
	}
}

func TestBuildParamsSortedWithIntentFirst(t *testing.T) {
	text := Build(Opts{
		Context:       testContext(),
		ComponentType: "process",
		ComponentName: "recalc",
		Params: map[string]string{
			"table":          "C_Order",
			InstructionParam: "recalculate totals for open orders",
			"column":         "GrandTotal",
		},
	})
	intent := strings.Index(text, "Business intent: recalculate totals")
	column := strings.Index(text, "- column: GrandTotal")
	table := strings.Index(text, "- table: C_Order")
	if intent < 0 || column < 0 || table < 0 {
		t.Fatalf("parameters missing:\n%s", text)
	}
	if !(intent < column && column < table) {
		t.Error("expected intent, then params sorted by key")
	}
	if strings.Contains(text, "- instruction:") {
		t.Error("instruction should not be listed twice")
	}
}

func TestBuildDeterministic(t *testing.T) {
	opts := Opts{
		Context:       testContext(),
		ComponentType: "event-handler",
		ComponentName: "order",
		Params:        map[string]string{"b": "2", "a": "1", "c": "3"},
	}
	first := Build(opts)
	for i := 0; i < 10; i++ {
		if Build(opts) != first {
			t.Fatal("prompt is not deterministic")
		}
	}
}

func TestBuildPartialContext(t *testing.T) {
	text := Build(Opts{ComponentType: "unknown-kind", ComponentName: "x"})
	for _, want := range []string{
		`Generate a component of type "unknown-kind"`,
		"- Plugin ID: (unknown)",
		"- Existing types: none",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
