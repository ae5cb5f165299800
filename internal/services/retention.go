package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type historySweeper interface {
	EvictAll(ctx context.Context, maxAge time.Duration) (int64, error)
}

// RetentionScheduler periodically evicts chat history older than the
// retention window across all clients. Sessions also evict on open; this
// catches clients that never come back.
type RetentionScheduler struct {
	sweeper   historySweeper
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewRetentionScheduler(sweeper historySweeper, retention, interval time.Duration, logger *zap.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		sweeper:   sweeper,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

func (s *RetentionScheduler) Start() {
	if s.sweeper == nil || s.interval <= 0 {
		return
	}

	s.wg.Add(1)
	go s.loop()
}

// Stop ends the loop and waits for an in-flight sweep.
func (s *RetentionScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *RetentionScheduler) loop() {
	defer s.wg.Done()

	// Run on startup as well as by interval.
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *RetentionScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.sweeper.EvictAll(ctx, s.retention)
	if err != nil {
		s.logger.Warn("history sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("history sweep evicted messages", zap.Int64("count", n))
	}
}
