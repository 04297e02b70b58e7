package potlai

import (
	"context"
	"time"
)

// Status is the terminal state of a translation unit.
type Status int

const (
	StatusPending Status = iota
	StatusTranslated
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusTranslated:
		return "translated"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Entry is one translatable unit of a batch.
type Entry struct {
	Index    int    // Position in the originating catalog
	ID       string // Identity in the originating catalog
	Source   string
	Target   string // Translation, or the error sentinel once failed
	Status   Status
	Attempts int   // Completion attempts made
	Err      error // Final failure, nil unless Status is StatusFailed
}

// ResponseMode selects how the assistant reply is read.
type ResponseMode string

const (
	// ModeRaw takes the whole reply as the translation.
	ModeRaw ResponseMode = "raw"
	// ModeJSON expects {"final_translation": "..."}.
	ModeJSON ResponseMode = "json"
)

// DispatchMode selects how batch entries are scheduled.
type DispatchMode string

const (
	// DispatchConcurrent puts every entry in flight at once, optionally
	// bounded by MaxConcurrent.
	DispatchConcurrent DispatchMode = "concurrent"
	// DispatchChunked runs fixed-size groups one after another.
	DispatchChunked DispatchMode = "chunked"
)

// CompletionOptions are the sampling parameters sent with every request.
type CompletionOptions struct {
	Temperature     float32
	MaxOutputTokens int
	JSON            bool // Ask the backend for a JSON object reply
}

// CompletionRequest is a single chat-style request: one system message and
// one user message.
type CompletionRequest struct {
	System  string
	User    string
	Options CompletionOptions
}

// Completion is the assistant reply together with its token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// CompletionClient is the interface for LLM chat-completion backends.
// Implementations return *ProviderError for backend failures.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// TranslationCache is the interface for translation caching.
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

// Usage is a snapshot of session counters.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	Requests         int64 `json:"requests"`
}

// Telemetry is returned from every single-item and batch call.
type Telemetry struct {
	SessionID  string        `json:"session_id"`
	ReadTokens int64         `json:"read_tokens"`
	GenTokens  int64         `json:"gen_tokens"`
	Requests   int64         `json:"requests"`
	Translated int           `json:"translated"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
	Cost       float64       `json:"cost_usd"`
}

// SessionReport is handed to a UsageRecorder when a session closes.
type SessionReport struct {
	SessionID  string
	Model      string
	TargetLang string
	Usage      Usage
	StartedAt  time.Time
	FinishedAt time.Time
}

// UsageRecorder persists finished session totals.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, report SessionReport) error
}
