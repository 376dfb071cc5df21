package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

// RetryConfig controls how a Retrier paces and repeats completion calls.
type RetryConfig struct {
	MaxRetries         int           // retries after the first attempt
	Timeout            time.Duration // per-attempt timeout
	RequestsPerMinute  int           // 0 = unlimited
	MaxConcurrentCalls int           // 0 = unlimited
	Backoff            func(attempt int) time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         2,
		Timeout:            60 * time.Second,
		MaxConcurrentCalls: 3,
		Backoff:            LinearBackoff,
	}
}

// LinearBackoff waits 1.2s, 2.4s, 3.6s, ... between attempts.
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 1200 * time.Millisecond
}

// Retrier wraps a Completer with a per-attempt timeout, request pacing, a cap
// on concurrent calls and retries for transient failures.
type Retrier struct {
	next    Completer
	service string
	cfg     RetryConfig
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

func NewRetrier(next Completer, service string, cfg RetryConfig) *Retrier {
	if cfg.Backoff == nil {
		cfg.Backoff = LinearBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	r := &Retrier{next: next, service: service, cfg: cfg}
	if cfg.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if cfg.MaxConcurrentCalls > 0 {
		r.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentCalls))
	}
	return r
}

func (r *Retrier) Complete(ctx context.Context, system, prompt string) (string, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return "", fmt.Errorf("failed to acquire %s call slot: %w", r.service, err)
		}
		defer r.sem.Release(1)
	}

	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("%s rate limiter: %w", r.service, err)
			}
		}

		text, err := r.attempt(ctx, system, prompt)
		if err == nil {
			if attempt > 0 {
				slog.Debug("Oracle call succeeded after retries", "service", r.service, "retries", attempt)
			}
			return text, nil
		}
		lastErr = err

		if !r.retryable(ctx, err) {
			return "", err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		wait := r.cfg.Backoff(attempt)
		slog.Warn("Oracle call failed, retrying",
			"service", r.service,
			"attempt", attempt+1,
			"max_attempts", r.cfg.MaxRetries+1,
			"kind", errkind.KindOf(err),
			"backoff", wait,
			"error", err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", fmt.Errorf("%s call canceled during backoff: %w", r.service, ctx.Err())
		}
	}

	return "", fmt.Errorf("%s call failed after %d attempts: %w", r.service, r.cfg.MaxRetries+1, lastErr)
}

func (r *Retrier) attempt(ctx context.Context, system, prompt string) (string, error) {
	if r.cfg.Timeout <= 0 {
		return r.next.Complete(ctx, system, prompt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	text, err := r.next.Complete(attemptCtx, system, prompt)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil &&
		errkind.KindOf(err) == errkind.Unknown {
		return "", errkind.Wrap(errkind.Timeout, r.service, err)
	}
	return text, err
}

// retryable reports whether err is transient. Unclassified transport errors
// are retried; auth, bad requests and parse failures are not.
func (r *Retrier) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	kind := errkind.KindOf(err)
	return kind.Retryable() || kind == errkind.Unknown
}
