package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures navigation retry behavior.
type RetryConfig struct {
	MaxRetries     int           // attempts beyond the first
	InitialBackoff time.Duration // doubles each retry
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible retry defaults. Console pages
// load flakily under latency; two extra attempts clear the common
// transient failures without masking a genuinely wrong target.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     8 * time.Second,
	}
}

// ErrRetriesExhausted indicates all retry attempts failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// withRetry executes fn with exponential backoff. Context cancellation
// stops the loop immediately and is never counted as an attempt worth
// retrying.
func withRetry(ctx context.Context, cfg RetryConfig, operation string, log *zap.Logger, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("retry succeeded",
					zap.String("operation", operation), zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		lastErr = err
		log.Warn("attempt failed",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max", cfg.MaxRetries+1),
			zap.Error(err))

		if attempt < cfg.MaxRetries {
			backoff := calculateBackoff(cfg, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("%w for %s: %v", ErrRetriesExhausted, operation, lastErr)
}

func calculateBackoff(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	return time.Duration(backoff)
}
