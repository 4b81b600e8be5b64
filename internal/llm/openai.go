package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const (
	openaiAPIURL       = "https://api.openai.com/v1/chat/completions"
	openaiDefaultModel = "gpt-4o"
	openaiKeyEnv       = "OPENAI_API_KEY"
	openaiMaxTokens    = 8192
)

// OpenAIProvider implements Client using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	cfg    ProviderConfig
	apiURL string
	client *http.Client
}

// NewOpenAI creates an OpenAI provider. The key is resolved on each call.
func NewOpenAI(cfg ProviderConfig) *OpenAIProvider {
	url := cfg.BaseURL
	if url == "" {
		url = openaiAPIURL
	}
	return &OpenAIProvider{cfg: cfg, apiURL: url, client: newHTTPClient()}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) IsConfigured() bool {
	return lookupKey(o.cfg, openaiKeyEnv) != ""
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string) Response {
	key := lookupKey(o.cfg, openaiKeyEnv)
	if key == "" {
		return Fail("openai: API key not set")
	}

	reqBody := openaiRequest{
		Model:     modelOrDefault(o.cfg, openaiDefaultModel),
		MaxTokens: openaiMaxTokens,
		Messages: []openaiMessage{
			{Role: "user", Content: prompt},
		},
	}
	// JSON mode is rejected unless the messages mention JSON.
	if strings.Contains(strings.ToLower(prompt), "json") {
		reqBody.ResponseFormat = &openaiResponseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Fail("openai: marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return Fail("openai: create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := o.client.Do(req)
	if err != nil {
		return Fail("openai: request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Fail("openai: read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Fail("openai: API returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var result openaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Fail("openai: parse response: %v", err)
	}
	if len(result.Choices) == 0 {
		return Fail("openai: no choices in response")
	}
	if result.Choices[0].Message.Content == "" {
		return Fail("openai: empty message content")
	}
	return Ok(result.Choices[0].Message.Content)
}

type openaiRequest struct {
	Model          string                `json:"model"`
	MaxTokens      int                   `json:"max_tokens"`
	Messages       []openaiMessage       `json:"messages"`
	ResponseFormat *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponseFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}
