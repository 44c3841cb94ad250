package dialogue

import (
	"context"
	"sync"
)

// MockResponder implements Responder for testing.
type MockResponder struct {
	// RespondFunc is called when Respond is invoked.
	// If nil, a canned reply is returned.
	RespondFunc func(ctx context.Context, req Request) (string, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu       sync.Mutex
	requests []Request
}

// NewMockResponder creates a mock that echoes a canned reply.
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

// NewMockResponderWithError creates a mock that always fails.
func NewMockResponderWithError(err error) *MockResponder {
	return &MockResponder{
		RespondFunc: func(ctx context.Context, req Request) (string, error) {
			return "", err
		},
	}
}

// Respond records the request and delegates to RespondFunc.
func (m *MockResponder) Respond(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, req)
	}
	return "This is a mock reply.", nil
}

// Close implements Responder.
func (m *MockResponder) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Requests returns the captured requests.
func (m *MockResponder) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many times Respond was called.
func (m *MockResponder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// MockKnowledge implements Knowledge for testing.
type MockKnowledge struct {
	// LookupFunc is called when Lookup is invoked.
	// If nil, returns no match.
	LookupFunc func(ctx context.Context, query string) (string, error)

	mu      sync.Mutex
	queries []string
}

// Lookup records the query and delegates to LookupFunc.
func (m *MockKnowledge) Lookup(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()

	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, query)
	}
	return "", nil
}

// Queries returns the captured lookup queries.
func (m *MockKnowledge) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// Verify mocks implement the interfaces at compile time.
var (
	_ Responder = (*MockResponder)(nil)
	_ Knowledge = (*MockKnowledge)(nil)
)
