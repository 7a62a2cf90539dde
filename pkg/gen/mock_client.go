package gen

import (
	"context"
	"sync"

	"feedpilot/pkg/gen/llm"
)

// MockClient is an llm.Client for tests: canned responses or a custom
// function, with call counting. Also used by orchestrator tests to bound
// provider call counts.
type MockClient struct {
	mu        sync.Mutex
	calls     int
	responses []llm.CompletionResponse
	err       error

	// CompleteFunc overrides the canned behavior when set.
	CompleteFunc func(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error)
}

// NewMockClient creates a mock that replays responses in order, repeating the
// last one when exhausted.
func NewMockClient(responses ...llm.CompletionResponse) *MockClient {
	return &MockClient{responses: responses}
}

// NewFailingMockClient creates a mock whose every call fails with err.
func NewFailingMockClient(err error) *MockClient {
	return &MockClient{err: err}
}

// Complete implements llm.Client.
func (m *MockClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, in)
	}
	if m.err != nil {
		return llm.CompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		return llm.CompletionResponse{}, nil
	}
	idx := call - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// ModelName implements llm.Client.
func (m *MockClient) ModelName() string { return "mock-model" }

// Calls returns how many times Complete ran.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
