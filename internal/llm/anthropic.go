package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

const (
	anthropicAPIURL       = "https://api.anthropic.com/v1/messages"
	anthropicDefaultModel = "claude-sonnet-4-6"
	anthropicAPIVersion   = "2023-06-01"
	anthropicKeyEnv       = "ANTHROPIC_API_KEY"
	anthropicMaxTokens    = 16384
)

// AnthropicProvider implements Client using the Anthropic Messages API.
type AnthropicProvider struct {
	cfg    ProviderConfig
	apiURL string
	client *http.Client
}

// NewAnthropic creates an Anthropic provider. The key is resolved on each call.
func NewAnthropic(cfg ProviderConfig) *AnthropicProvider {
	url := cfg.BaseURL
	if url == "" {
		url = anthropicAPIURL
	}
	return &AnthropicProvider{cfg: cfg, apiURL: url, client: newHTTPClient()}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) IsConfigured() bool {
	return lookupKey(a.cfg, anthropicKeyEnv) != ""
}

func (a *AnthropicProvider) Generate(ctx context.Context, prompt string) Response {
	key := lookupKey(a.cfg, anthropicKeyEnv)
	if key == "" {
		return Fail("anthropic: API key not set")
	}

	reqBody := anthropicRequest{
		Model:     modelOrDefault(a.cfg, anthropicDefaultModel),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Fail("anthropic: marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL, bytes.NewReader(body))
	if err != nil {
		return Fail("anthropic: create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Anthropic-Version", anthropicAPIVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return Fail("anthropic: request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Fail("anthropic: read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Fail("anthropic: API returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Fail("anthropic: parse response: %v", err)
	}
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			return Ok(block.Text)
		}
	}
	return Fail("anthropic: no text content in response")
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
