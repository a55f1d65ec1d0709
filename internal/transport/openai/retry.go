package openai

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-docs/corpusqa/internal/metrics"
)

const retryBaseDelay = 500 * time.Millisecond

// callOptions bounds one model-service call: a per-attempt deadline and a
// small retry budget for transient failures only.
type callOptions struct {
	service    string
	model      string
	timeout    time.Duration
	maxRetries int
	logger     *zap.Logger
}

// withRetry runs fn with a per-attempt deadline, retrying transient
// failures with exponential backoff. maxRetries is the number of retries
// after the first attempt.
func withRetry(ctx context.Context, opts callOptions, fn func(ctx context.Context) error) error {
	var err error
	delay := retryBaseDelay

	for attempt := 0; ; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if opts.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, opts.timeout)
		}
		err = fn(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil || attempt >= opts.maxRetries || !isTransient(err) {
			return err
		}

		metrics.ModelRetriesTotal.WithLabelValues(opts.service, opts.model).Inc()
		opts.logger.Warn("Transient model service failure, retrying",
			zap.String("service", opts.service),
			zap.String("model", opts.model),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
