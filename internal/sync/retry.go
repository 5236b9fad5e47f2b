// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/vidsync/internal/ledger"
	"github.com/ManuGH/vidsync/internal/log"
	"github.com/ManuGH/vidsync/internal/metrics"
	"github.com/ManuGH/vidsync/internal/telemetry"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Retryer wraps remote reads with bounded retries. Non-retryable
// failures (permission denied, unauthenticated, malformed document)
// abort immediately; transient ones wait attempt*BaseDelay between
// tries (1s, 2s, 3s with the defaults).
type Retryer struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a Retryer; non-positive arguments take the defaults.
func NewRetryer(maxAttempts int, baseDelay time.Duration, logger zerolog.Logger) Retryer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return Retryer{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn up to MaxAttempts times. Only transient failures are
// retried; permanent failures and malformed documents abort on the first
// attempt. The returned error is the one that aborted the loop, or the
// last transient failure once the budget is exhausted (wrapped, so
// errors.Is still classifies it).
func (r Retryer) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	doSleep := r.sleep
	if doSleep == nil {
		doSleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * r.BaseDelay
			trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
				attribute.Int(telemetry.RetryAttemptKey, attempt),
				attribute.Int(telemetry.RetryBudgetKey, r.MaxAttempts)))
			r.Logger.Debug().
				Str(log.FieldOperation, op).
				Int(log.FieldAttempt, attempt).
				Dur("delay", delay).
				Msg("retrying remote read")
			if err := doSleep(ctx, delay); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !ledger.IsTransient(err) {
			class := "permanent"
			if errors.Is(err, ledger.ErrBadDocument) {
				class = "malformed"
			}
			metrics.RetryTotal.WithLabelValues(class).Inc()
			r.Logger.Warn().
				Str(log.FieldOperation, op).
				Int(log.FieldAttempt, attempt).
				Err(err).
				Msg("non-retryable failure")
			return err
		}
		metrics.RetryTotal.WithLabelValues("transient").Inc()
		r.Logger.Warn().
			Str(log.FieldOperation, op).
			Int(log.FieldAttempt, attempt).
			Err(err).
			Msg("transient failure")
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, r.MaxAttempts, lastErr)
}
