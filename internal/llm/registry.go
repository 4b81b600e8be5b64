package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Factory builds a client from configuration.
type Factory func(cfg ProviderConfig) Client

// Registry maps provider names to factories.
type Registry struct {
	factories map[string]Factory
	aliases   map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory), aliases: make(map[string]string)}
}

// DefaultRegistry returns a registry holding the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("anthropic", func(cfg ProviderConfig) Client { return NewAnthropic(cfg) }, "claude")
	r.Register("openai", func(cfg ProviderConfig) Client { return NewOpenAI(cfg) }, "gpt")
	r.Register("gemini", func(cfg ProviderConfig) Client { return NewGemini(cfg) }, "google")
	return r
}

// Register adds a provider under name and optional aliases.
func (r *Registry) Register(name string, f Factory, aliases ...string) {
	name = strings.ToLower(name)
	r.factories[name] = f
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = name
	}
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the single active client for cfg. It returns nil and a
// reason when AI is disabled, the provider is unknown or unconfigured, or
// when no provider is named and more than one is configured.
//
// The provider may carry a model, as in "anthropic:claude-sonnet-4-6".
func (r *Registry) Resolve(cfg ProviderConfig) (Client, string) {
	if !cfg.Enabled {
		return nil, "AI generation is disabled"
	}

	name, model, hasModel := strings.Cut(strings.TrimSpace(cfg.Provider), ":")
	if hasModel && cfg.Model == "" {
		cfg.Model = model
	}
	name = strings.ToLower(name)
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}

	if name != "" {
		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Sprintf("unknown AI provider %q (available: %s)", name, strings.Join(r.Names(), ", "))
		}
		c := f(cfg)
		if !c.IsConfigured() {
			return nil, fmt.Sprintf("AI provider %q is not configured", name)
		}
		return c, ""
	}

	var configured []Client
	for _, n := range r.Names() {
		if c := r.factories[n](cfg); c.IsConfigured() {
			configured = append(configured, c)
		}
	}
	switch len(configured) {
	case 0:
		return nil, "no AI provider configured"
	case 1:
		return configured[0], ""
	default:
		names := make([]string, 0, len(configured))
		for _, c := range configured {
			names = append(names, c.Name())
		}
		return nil, fmt.Sprintf("multiple AI providers configured (%s); set ai.provider", strings.Join(names, ", "))
	}
}
