package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"polyglot/internal/domain/feedback"
	"polyglot/internal/domain/feedback/ports"
	"polyglot/internal/shared/logging"
)

// RetryConfig bounds how often a transient provider failure is retried.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig retries twice with a short exponential delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialInterval: 500 * time.Millisecond, MaxInterval: 4 * time.Second}
}

// RetryAnalyzer retries an analyzer on rate limits, upstream 5xx and
// connection failures. Anything else is returned after the first attempt.
type RetryAnalyzer struct {
	inner  ports.Analyzer
	cfg    RetryConfig
	logger logging.Logger
}

var _ ports.Analyzer = (*RetryAnalyzer)(nil)

// NewRetryAnalyzer wraps inner. A zero InitialInterval falls back to the defaults.
func NewRetryAnalyzer(inner ports.Analyzer, cfg RetryConfig, logger logging.Logger) *RetryAnalyzer {
	defaults := DefaultRetryConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = max(defaults.MaxInterval, cfg.InitialInterval)
	}
	if logger == nil {
		logger = logging.NewComponentLogger("llm-retry")
	}
	return &RetryAnalyzer{inner: inner, cfg: cfg, logger: logger}
}

// Analyze calls the wrapped analyzer until it succeeds, fails permanently,
// runs out of retries or ctx is done.
func (r *RetryAnalyzer) Analyze(ctx context.Context, model, text string) (feedback.Analysis, error) {
	var (
		analysis feedback.Analysis
		attempt  int
	)
	op := func() error {
		attempt++
		result, err := r.inner.Analyze(ctx, model, text)
		if err == nil {
			analysis = result
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("Analysis attempt %d failed: %v", attempt, err)
		return err
	}

	if err := backoff.Retry(op, r.newBackOff(ctx)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return feedback.Analysis{}, ctxErr
		}
		return feedback.Analysis{}, err
	}
	return analysis, nil
}

func (r *RetryAnalyzer) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)
}

// IsTransient reports whether err is a provider failure worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		return false
	}
	switch providerErr.Status {
	case 0, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
