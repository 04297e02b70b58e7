package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockClient is a scripted completion backend for tests and dry runs.
// Known user messages get their mapped reply; others are echoed in brackets.
type MockClient struct {
	Translations map[string]string // Map of user message to reply
	Errors       []error           // Returned, in order, by the first calls
	Delay        time.Duration     // Simulated latency per call
	PromptTokens int               // Reported prompt tokens per call
	GenTokens    int               // Reported completion tokens per call

	mu          sync.Mutex
	callCount   int
	lastRequest *CompletionRequest
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// NewMockClient creates a mock client with a few default translations.
func NewMockClient() *MockClient {
	return &MockClient{
		Translations: map[string]string{
			"Hello":       "Привіт",
			"World":       "Світ",
			"Hello World": "Привіт, світе",
		},
		PromptTokens: 10,
		GenTokens:    5,
	}
}

// Complete returns the scripted reply for req.User.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		max := m.maxInFlight.Load()
		if n <= max || m.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	m.mu.Lock()
	call := m.callCount
	m.callCount++
	m.lastRequest = &req
	var scripted error
	if call < len(m.Errors) {
		scripted = m.Errors[call]
	}
	text, ok := m.Translations[req.User]
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if scripted != nil {
		return nil, scripted
	}
	if !ok {
		text = "[" + req.User + "]"
	}

	return &Completion{
		Text:             text,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.GenTokens,
	}, nil
}

// CallCount returns the number of Complete calls.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or nil.
func (m *MockClient) LastRequest() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (m *MockClient) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

// Reset clears the call counters.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastRequest = nil
	m.maxInFlight.Store(0)
}

// Verify MockClient implements CompletionClient
var _ CompletionClient = (*MockClient)(nil)
