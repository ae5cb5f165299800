// Package worker drains the chat audit queue in the background.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

const (
	popTimeout    = 5 * time.Second
	recordTimeout = 15 * time.Second
)

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry) (string, error)
}

// Pool runs workerCount goroutines that BLPOP audit entries and hand them to
// the recorder. Failed entries are logged and dropped, never retried.
type Pool struct {
	redis       *redis.Client
	recorder    auditRecorder
	queue       string
	workerCount int
	logger      *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewPool(redisClient *redis.Client, recorder auditRecorder, queue string, workerCount int, logger *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		redis:       redisClient,
		recorder:    recorder,
		queue:       queue,
		workerCount: workerCount,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("audit workers started", zap.Int("count", p.workerCount), zap.String("queue", p.queue))
}

// Stop signals the workers and waits for in-flight entries to finish.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			p.logger.Debug("audit worker shutting down", zap.Int("worker", id))
			return
		default:
		}

		result, err := p.redis.BLPop(p.ctx, popTimeout, p.queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && p.ctx.Err() == nil {
				p.logger.Warn("audit queue pop failed", zap.Int("worker", id), zap.Error(err))
				// Back off so a dead Redis does not spin the loop.
				select {
				case <-time.After(time.Second):
				case <-p.stopChan:
				}
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		p.handle(id, result[1])
	}
}

func (p *Pool) handle(id int, payload string) {
	var entry models.AuditEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		p.logger.Warn("failed to parse audit entry", zap.Int("worker", id), zap.Error(err))
		return
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	// Entries already popped are finished even during shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if _, err := p.recorder.Record(ctx, entry); err != nil {
		p.logger.Error("audit record dropped",
			zap.Int("worker", id),
			zap.String("session_id", entry.SessionID),
			zap.Error(err),
		)
	}
}
