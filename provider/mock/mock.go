// Package mock provides a scripted provider for tests and offline runs.
package mock

import (
	"context"
	"sync"

	"github.com/GoCodeAlone/conductor/provider"
)

const defaultResponse = "REASONING:\nNo planner configured.\n\nASSIGNMENTS:\n"

// MockProvider implements provider.Provider. It cycles through scripted
// responses and records every conversation it receives.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	idx       int
	err       error
	calls     [][]provider.Message
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// SetError makes every following Chat call fail with err. nil restores
// scripted responses.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Chat returns the next scripted response, cycling through the queue.
func (m *MockProvider) Chat(_ context.Context, messages []provider.Message) (*provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]provider.Message(nil), messages...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &provider.Response{Content: defaultResponse}, nil
	}
	resp := m.responses[m.idx%len(m.responses)]
	m.idx++
	return &provider.Response{Content: resp}, nil
}

// Prompts returns the user content of every call, in order.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, msgs := range m.calls {
		for _, msg := range msgs {
			if msg.Role == provider.RoleUser {
				out = append(out, msg.Content)
			}
		}
	}
	return out
}

// Calls returns the number of Chat calls made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
