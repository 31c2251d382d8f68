package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-intelligence/internal/domain/entities"
)

const sweepBatchSize = 100

// Sweep actions reported to metrics
const (
	sweepRequeued = "requeued"
	sweepFailed   = "failed"
)

// Sweep recovers meetings whose job was lost or whose worker died. Processing
// meetings under the attempt limit and stale uploaded meetings are re-enqueued;
// processing meetings over the limit are failed.
func (s *pipelineService) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.StaleAfter)
	stale, err := s.meetings.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale meetings: %w", err)
	}

	handled := 0
	for _, m := range stale {
		log := s.logger.With(
			zap.String("meeting_id", m.ID.String()),
			zap.String("status", string(m.Status)),
			zap.Int("attempts", m.Attempts),
		)

		if m.Status == entities.MeetingStatusProcessing && s.cfg.MaxJobAttempts > 0 && m.Attempts >= s.cfg.MaxJobAttempts {
			marked, err := s.meetings.MarkFailed(ctx, m.ID, reasonTimedOut)
			if err != nil {
				log.Error("failed to fail stale meeting", zap.Error(err))
				continue
			}
			if marked {
				s.metrics.IncSwept(sweepFailed)
				log.Warn("stale meeting failed after exhausting attempts")
				handled++
			}
			continue
		}

		if err := s.queue.Enqueue(ctx, m.ID); err != nil {
			log.Error("failed to re-enqueue stale meeting", zap.Error(err))
			continue
		}
		s.metrics.IncSwept(sweepRequeued)
		log.Warn("stale meeting re-enqueued")
		handled++
	}

	s.recordQueueDepth(ctx)
	return handled, nil
}

func (s *pipelineService) recordQueueDepth(ctx context.Context) {
	depth, err := s.queue.Depth(ctx)
	if err != nil {
		s.logger.Warn("failed to read queue depth", zap.Error(err))
		return
	}
	s.metrics.SetQueueDepth(depth)
}

func (s *pipelineService) sweepLoop(ctx context.Context) {
	defer s.workerWg.Done()

	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("recovery sweep failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				s.logger.Info("recovery sweep finished", zap.Int("handled", n))
			}
		}
	}
}
