package component

import (
	"strings"
	"testing"
)

func TestCatalogHasAllTypes(t *testing.T) {
	want := []string{
		"activator", "callout", "callout-factory", "event-handler", "form",
		"form-factory", "integration-test", "model-factory", "model-validator",
		"process", "process-factory", "report", "rest-extension", "unit-test",
	}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	for _, typ := range Types() {
		if typ.Description == "" || typ.Body == "" || typ.Title == "" {
			t.Errorf("%s: incomplete entry", typ.Name)
		}
		if len(typ.Imports) == 0 {
			t.Errorf("%s: no imports", typ.Name)
		}
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"callout", "Event_Handler", " rest-extension "} {
		if _, err := Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}
	_, err := Lookup("widget")
	if err == nil || !strings.Contains(err.Error(), "unknown component type") {
		t.Errorf("Lookup(widget) err = %v", err)
	}
	if Known("widget") || !Known("process") {
		t.Error("Known mismatch")
	}
}

func TestClassName(t *testing.T) {
	callout, _ := Lookup("callout")
	process, _ := Lookup("process")
	tests := []struct {
		typ  *Type
		in   string
		want string
	}{
		{callout, "order line", "OrderLineCallout"},
		{callout, "order-line", "OrderLineCallout"},
		{callout, "orderLine", "OrderLineCallout"},
		{callout, "OrderCallout", "OrderCallout"},
		{process, "recalc_prices", "RecalcPrices"},
		{process, "42", "C42"},
		{process, "  ", "New"},
	}
	for _, tt := range tests {
		if got := tt.typ.ClassName(tt.in); got != tt.want {
			t.Errorf("%s.ClassName(%q) = %q, want %q", tt.typ.Name, tt.in, got, tt.want)
		}
	}
}

func TestPackage(t *testing.T) {
	callout, _ := Lookup("callout")
	activator, _ := Lookup("activator")
	if got := callout.Package("com.acme"); got != "com.acme.callout" {
		t.Errorf("got %q", got)
	}
	if got := activator.Package("com.acme"); got != "com.acme" {
		t.Errorf("got %q", got)
	}
	if got := callout.Package(""); got != "callout" {
		t.Errorf("got %q", got)
	}
}

func TestNeedsComponentXML(t *testing.T) {
	for name, want := range map[string]bool{
		"callout-factory": true,
		"event-handler":   true,
		"callout":         false,
		"process":         false,
	} {
		typ, _ := Lookup(name)
		if got := typ.NeedsComponentXML(); got != want {
			t.Errorf("%s: NeedsComponentXML = %v, want %v", name, got, want)
		}
	}
}
