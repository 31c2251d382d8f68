package pipeline

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	ucErrors "github.com/johnquangdev/meeting-intelligence/internal/usecase/errors"
	"github.com/johnquangdev/meeting-intelligence/pkg/jobcontext"
)

// isRetryable reports whether another attempt of a stage call may succeed
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stdErrors.Is(err, ucErrors.ErrTransient) || stdErrors.Is(err, ucErrors.ErrMalformedAnalysis) {
		return true
	}
	return jobcontext.IsRetryableError(err)
}

func (s *pipelineService) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitialInterval
	b.MaxInterval = s.cfg.RetryMaxInterval
	b.MaxElapsedTime = 0

	retries := s.cfg.StageMaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// retryStage runs op until it succeeds, fails permanently, or attempts run out
func retryStage[T any](ctx context.Context, s *pipelineService, stage string, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.IncStageRetry(stage)
		s.logger.Warn("stage attempt failed, retrying",
			append(jobcontext.Fields(ctx),
				zap.String("stage", stage),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)...,
		)
	}
	return backoff.RetryNotifyWithData(operation, s.newBackOff(ctx), notify)
}
