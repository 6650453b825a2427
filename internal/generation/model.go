package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/gapfill-api/internal/platform/logger"
	"github.com/sethvargo/go-retry"
)

// Model is the boundary to an external generative text model. Implementations
// return ErrTransientFailure (wrapped) for errors that may succeed on retry and
// ErrContentBlocked or ErrInvalidResponse for permanent ones.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts an ordinary function to the Model interface.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// RetryingModel retries transient failures of the wrapped model with jittered
// exponential backoff. The caller's context bounds the whole sequence.
type RetryingModel struct {
	next       Model
	maxRetries uint64
	baseDelay  time.Duration
	logger     *slog.Logger
}

// WithRetry wraps next so that ErrTransientFailure is retried up to maxRetries
// times. Any other error is returned immediately.
func WithRetry(next Model, maxRetries int, baseDelay time.Duration, log *slog.Logger) *RetryingModel {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryingModel{
		next:       next,
		maxRetries: uint64(maxRetries),
		baseDelay:  baseDelay,
		logger:     log.With(slog.String("component", "model_retry")),
	}
}

// Complete implements Model.
func (m *RetryingModel) Complete(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)

	b := retry.NewExponential(m.baseDelay)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithMaxRetries(m.maxRetries, b)

	attempt := 0
	text, err := retry.DoValue(ctx, b, func(ctx context.Context) (string, error) {
		attempt++
		out, err := m.next.Complete(ctx, prompt)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ErrTransientFailure) {
			log.WarnContext(ctx, "transient model failure",
				slog.Int("attempt", attempt),
				slog.Uint64("max_retries", m.maxRetries),
				slog.String("error", err.Error()))
			return "", retry.RetryableError(err)
		}
		return "", err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: %w", ErrTransientFailure, err)
		}
		return "", err
	}
	if attempt > 1 {
		log.InfoContext(ctx, "model call succeeded after retry", slog.Int("attempts", attempt))
	}
	return text, nil
}
