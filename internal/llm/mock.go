package llm

import "context"

// MockClient is a test double that returns a canned response.
type MockClient struct {
	Reply      Response
	Configured bool
	Prompts    []string
}

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) IsConfigured() bool { return m.Configured }

func (m *MockClient) Generate(_ context.Context, prompt string) Response {
	m.Prompts = append(m.Prompts, prompt)
	return m.Reply
}
