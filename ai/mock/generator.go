package mock

import (
	"context"
	"strings"
	"sync"
)

// GenerateCall records the arguments of one GenerateAnswer invocation.
type GenerateCall struct {
	Question    string
	ContextDocs []string
}

// MockGenerator is a test double for ai.AnswerGenerator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	// If nil, returns Answer when non-empty, otherwise echoes the first
	// words of the context.
	GenerateAnswerFunc func(ctx context.Context, question string, contextDocs []string) (string, error)

	// Answer is the canned response used when GenerateAnswerFunc is nil.
	Answer string

	mu    sync.Mutex
	calls []GenerateCall
}

// NewMockGenerator creates a mock generator with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateAnswer records the call and produces an answer.
func (m *MockGenerator) GenerateAnswer(ctx context.Context, question string, contextDocs []string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{
		Question:    question,
		ContextDocs: append([]string(nil), contextDocs...),
	})
	m.mu.Unlock()

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, question, contextDocs)
	}
	if m.Answer != "" {
		return m.Answer, nil
	}

	words := strings.Fields(strings.Join(contextDocs, " "))
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " "), nil
}

// CallCount returns the number of GenerateAnswer calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded calls in order.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.Answer = ""
	m.GenerateAnswerFunc = nil
}
