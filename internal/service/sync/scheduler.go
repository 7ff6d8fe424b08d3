package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/ports"
)

// Scheduler triggers incremental sync runs on a fixed interval. A failed or
// overlong run never stops the loop; the next tick retries from the
// persisted watermark.
type Scheduler struct {
	svc        ports.SyncService
	interval   time.Duration
	runTimeout time.Duration
	log        *zap.Logger
}

func NewScheduler(svc ports.SyncService, interval, runTimeout time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if runTimeout <= 0 {
		runTimeout = interval
	}
	return &Scheduler{
		svc:        svc,
		interval:   interval,
		runTimeout: runTimeout,
		log:        log,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("sync scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sync run panicked", zap.Any("panic", r))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.svc.RunIncremental(runCtx); err != nil {
		s.log.Error("scheduled sync run failed", zap.Error(err))
	}
}
