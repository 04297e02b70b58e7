package potlai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZaguanLabs/potlai/glossary"
	"github.com/ZaguanLabs/potlai/protect"
)

// ErrorKind classifies backend failures by how the caller should react.
type ErrorKind int

const (
	// KindTransient failures are retried immediately.
	KindTransient ErrorKind = iota
	// KindRateLimit failures trigger the shared cooldown before retrying.
	KindRateLimit
	// KindFatal failures are never retried.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate limit"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ProviderError indicates a completion backend failure.
type ProviderError struct {
	Message string
	Cause   error
	Kind    ErrorKind
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ResponseParseError indicates a reply that could not be read in the
// configured response mode.
type ResponseParseError struct {
	Mode    ResponseMode
	Content string
	Cause   error
}

func (e *ResponseParseError) Error() string {
	msg := fmt.Sprintf("unreadable %s response %q", e.Mode, truncate(e.Content, 80))
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResponseParseError) Unwrap() error {
	return e.Cause
}

// PreservationError indicates a translation that altered or dropped
// protected spans of its source.
type PreservationError struct {
	Missing []protect.Span
}

func (e *PreservationError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, s := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s %q", s.Kind, truncate(s.Text, 40)))
	}
	return "translation lost protected spans: " + strings.Join(parts, ", ")
}

// TranslationError is the terminal failure of a single translation unit.
type TranslationError struct {
	Source   string
	Attempts int
	Cause    error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translating %q failed after %d attempt(s): %v", truncate(e.Source, 60), e.Attempts, e.Cause)
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// GlossaryLoadError is returned when the glossary cannot be loaded. No
// session is opened without one.
type GlossaryLoadError = glossary.LoadError

// IsRetryable reports whether a failed attempt may be repeated.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind != KindFatal
	}

	var parseErr *ResponseParseError
	if errors.As(err, &parseErr) {
		return true
	}

	var preserveErr *PreservationError
	return errors.As(err, &preserveErr)
}

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Kind == KindRateLimit
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
