package potlai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaguanLabs/potlai/glossary"
)

// scriptedClient is a CompletionClient whose replies come from respond.
// Without respond it prefixes the user text with "[uk] ", which keeps every
// protected span intact.
type scriptedClient struct {
	respond func(call int, req CompletionRequest) (*Completion, error)
	delay   time.Duration

	mu       sync.Mutex
	calls    int
	requests []CompletionRequest

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (c *scriptedClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		m := c.maxInFlight.Load()
		if n <= m || c.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	c.mu.Lock()
	c.calls++
	call := c.calls
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.respond != nil {
		return c.respond(call, req)
	}
	return reply("[uk] " + req.User), nil
}

func (c *scriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *scriptedClient) Requests() []CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CompletionRequest(nil), c.requests...)
}

// reply is a completion that reads 10 tokens and generates 5.
func reply(text string) *Completion {
	return &Completion{Text: text, PromptTokens: 10, CompletionTokens: 5}
}

// wordCount is a deterministic Tokenizer for tests.
type wordCount struct{}

func (wordCount) Count(text string) int {
	n, inWord := 0, false
	for _, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord {
			n++
		}
		inWord = !space
	}
	return n
}

// recordingRecorder is a UsageRecorder that keeps its reports.
type recordingRecorder struct {
	mu      sync.Mutex
	reports []SessionReport
}

func (r *recordingRecorder) RecordUsage(_ context.Context, report SessionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

// mapCache is a TranslationCache backed by a map.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// newTestOrchestrator builds an orchestrator whose cooldown sleeps are
// recorded instead of slept.
func newTestOrchestrator(t *testing.T, client CompletionClient, opts ...Option) (*Orchestrator, *[]time.Duration) {
	t.Helper()

	terms := glossary.New([]glossary.Row{
		{Source: "angle", Target: "кут"},
		{Source: "degree", Target: "градус"},
	})
	base := []Option{WithGlossary(terms), WithTokenizer(wordCount{})}

	o, err := NewOrchestrator(client, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	var mu sync.Mutex
	slept := &[]time.Duration{}
	o.cooldown.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		*slept = append(*slept, d)
		mu.Unlock()
		return nil
	}
	return o, slept
}
