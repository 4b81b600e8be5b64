// Package llm defines the client interface and the HTTP-based text generation
// providers used for AI-assisted component generation.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Response is the outcome of one provider call. Expected failures (missing
// credentials, non-200 statuses, network faults, unusable envelopes) are
// reported here rather than as errors.
type Response struct {
	Success bool
	Content string
	Err     string
}

// Ok returns a successful response.
func Ok(content string) Response {
	return Response{Success: true, Content: content}
}

// Fail returns a failed response with a formatted reason.
func Fail(format string, args ...any) Response {
	return Response{Err: fmt.Sprintf(format, args...)}
}

// Client generates text from a prompt.
type Client interface {
	IsConfigured() bool
	Name() string
	Generate(ctx context.Context, prompt string) Response
}

// ProviderConfig selects and configures a provider. It is read fresh for
// every invocation; providers look their key up on each call.
type ProviderConfig struct {
	Enabled   bool
	Provider  string
	APIKeyEnv string
	Model     string
	// Env holds values from a plugin-local .env file, consulted after the
	// process environment.
	Env map[string]string
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

const validatePrompt = `Reply with the JSON object {"ok":true}.`

// Validate performs a minimal round trip to check that a client works.
func Validate(ctx context.Context, c Client) Response {
	if !c.IsConfigured() {
		return Fail("%s: not configured", c.Name())
	}
	r := c.Generate(ctx, validatePrompt)
	if !r.Success {
		return r
	}
	if strings.TrimSpace(r.Content) == "" {
		return Fail("%s: empty validation response", c.Name())
	}
	return r
}

// lookupKey resolves an API key from the configured variable name, or the
// provider default when none is configured.
func lookupKey(cfg ProviderConfig, defaultEnv string) string {
	name := cfg.APIKeyEnv
	if name == "" {
		name = defaultEnv
	}
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return strings.TrimSpace(cfg.Env[name])
}

func modelOrDefault(cfg ProviderConfig, def string) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return def
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
