package potlai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ZaguanLabs/potlai/protect"
)

// Session scopes usage accounting. Open one with Orchestrator.OpenSession
// and always Close it, typically with defer.
type Session struct {
	o       *Orchestrator
	id      string
	started time.Time
	log     zerolog.Logger

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	requests         atomic.Int64

	closeOnce sync.Once
	final     Telemetry
}

// OpenSession starts a session with zeroed counters.
func (o *Orchestrator) OpenSession() *Session {
	id := uuid.NewString()
	s := &Session{
		o:       o,
		id:      id,
		started: time.Now(),
		log:     o.logger.With().Str("session", id).Logger(),
	}
	s.log.Debug().Str("model", o.model).Str("target", o.targetLang).Msg("session opened")
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Usage returns the counters of every answered request so far, including
// requests whose reply was later rejected and retried.
func (s *Session) Usage() Usage {
	return Usage{
		PromptTokens:     s.promptTokens.Load(),
		CompletionTokens: s.completionTokens.Load(),
		Requests:         s.requests.Load(),
	}
}

// Telemetry returns the current session telemetry.
func (s *Session) Telemetry() Telemetry {
	u := s.Usage()
	return Telemetry{
		SessionID:  s.id,
		ReadTokens: u.PromptTokens,
		GenTokens:  u.CompletionTokens,
		Requests:   u.Requests,
		Elapsed:    time.Since(s.started),
		Cost:       EstimateCost(s.o.model, u),
	}
}

// Close finalizes the session: totals are logged and handed to the usage
// recorder. Further calls return the same telemetry.
func (s *Session) Close(ctx context.Context) Telemetry {
	s.closeOnce.Do(func() {
		finished := time.Now()
		s.final = s.Telemetry()
		s.final.Elapsed = finished.Sub(s.started)

		s.log.Info().
			Int64("requests", s.final.Requests).
			Int64("read_tokens", s.final.ReadTokens).
			Int64("gen_tokens", s.final.GenTokens).
			Dur("elapsed", s.final.Elapsed).
			Float64("cost_usd", s.final.Cost).
			Msg("session closed")

		if s.o.recorder == nil {
			return
		}
		report := SessionReport{
			SessionID:  s.id,
			Model:      s.o.model,
			TargetLang: s.o.targetLang,
			Usage:      s.Usage(),
			StartedAt:  s.started,
			FinishedAt: finished,
		}
		if err := s.o.recorder.RecordUsage(context.WithoutCancel(ctx), report); err != nil {
			s.log.Error().Err(err).Msg("recording session usage")
		}
	})
	return s.final
}

// Translate translates one chunk of text. Failures are returned as
// *TranslationError.
func (s *Session) Translate(ctx context.Context, text string) (string, error) {
	res := s.run(ctx, text)
	return res.text, res.err
}

type outcome struct {
	text     string
	attempts int
	skipped  bool
	err      error
}

func (s *Session) run(ctx context.Context, source string) outcome {
	o := s.o
	if passthrough(source, o.validate) {
		return outcome{text: source, skipped: true}
	}

	var key string
	if o.cache != nil {
		key = o.cacheKey(source)
		if cached, ok := o.cache.Get(ctx, key); ok {
			return outcome{text: cached}
		}
	}

	attempts := 0
	cfg := RetryConfig{
		MaxAttempts: o.maxRetry,
		Cooldown:    o.cooldown,
		OnRetry: func(attempt int, err error) {
			ev := s.log.Warn().Int("attempt", attempt).Err(err)
			if IsRateLimited(err) {
				ev.Dur("cooldown", o.cooldown.Period()).Msg("rate limit exceeded, cooling down")
				return
			}
			ev.Msg("retrying translation")
		},
	}
	out, err := WithRetry(ctx, cfg, func(ctx context.Context) (string, error) {
		attempts++
		return s.attempt(ctx, source)
	})
	if err != nil {
		return outcome{attempts: attempts, err: &TranslationError{Source: source, Attempts: attempts, Cause: err}}
	}

	if o.cache != nil {
		if err := o.cache.Set(ctx, key, out); err != nil {
			s.log.Warn().Err(&CacheError{Message: "storing translation", Cause: err}).Msg("cache write failed")
		}
	}
	return outcome{text: out, attempts: attempts}
}

// attempt issues a single request and checks the reply.
func (s *Session) attempt(ctx context.Context, source string) (string, error) {
	o := s.o

	callCtx := ctx
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	resp, err := o.client.Complete(callCtx, CompletionRequest{
		System:  o.system,
		User:    source,
		Options: o.completionOptions(),
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &ProviderError{Message: "request timed out", Cause: err, Kind: KindTransient}
		}
		return "", err
	}

	s.requests.Add(1)
	s.promptTokens.Add(int64(resp.PromptTokens))
	s.completionTokens.Add(int64(resp.CompletionTokens))

	out, err := parseResponse(o.mode, resp.Text)
	if err != nil {
		return "", err
	}
	if o.validate {
		if missing := protect.Check(source, out); len(missing) > 0 {
			return "", &PreservationError{Missing: missing}
		}
	}
	return out, nil
}

// translateEntry moves e to a terminal status.
func (s *Session) translateEntry(ctx context.Context, e *Entry) {
	res := s.run(ctx, e.Source)
	e.Attempts = res.attempts

	switch {
	case res.err != nil:
		e.Target = s.o.sentinel
		e.Status = StatusFailed
		e.Err = res.err
		s.log.Error().Int("index", e.Index).Str("id", e.ID).Int("attempts", res.attempts).Err(res.err).Msg("entry failed")
	case res.skipped:
		e.Target = res.text
		e.Status = StatusSkipped
		s.log.Debug().Int("index", e.Index).Msg("entry passed through")
	default:
		e.Target = res.text
		e.Status = StatusTranslated
		s.log.Debug().Int("index", e.Index).Int("attempts", res.attempts).Msg("entry translated")
	}
}
