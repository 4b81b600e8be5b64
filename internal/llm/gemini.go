package llm

import (
	"context"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
)

const (
	geminiDefaultModel = "gemini-2.5-flash"
	geminiKeyEnv       = "GEMINI_API_KEY"
)

// GeminiProvider implements Client with the official genai SDK. Requests go
// through the shared retrying HTTP client like every other provider.
type GeminiProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewGemini creates a Gemini provider. The key is resolved on each call.
func NewGemini(cfg ProviderConfig) *GeminiProvider {
	return &GeminiProvider{cfg: cfg, client: newHTTPClient()}
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) IsConfigured() bool {
	return lookupKey(g.cfg, geminiKeyEnv) != ""
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string) Response {
	key := lookupKey(g.cfg, geminiKeyEnv)
	if key == "" {
		return Fail("gemini: API key not set")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.client,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.cfg.BaseURL},
	})
	if err != nil {
		return Fail("gemini: create client: %v", err)
	}

	resp, err := cli.Models.GenerateContent(ctx, modelOrDefault(g.cfg, geminiDefaultModel),
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Fail("gemini: request failed: %v", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Fail("gemini: no candidates in response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return Fail("gemini: no text content in response")
	}
	return Ok(b.String())
}
