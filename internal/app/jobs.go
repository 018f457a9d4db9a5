package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Retrier re-runs assignment for courses with unresourced sessions.
type Retrier interface {
	RetryUnresourced(ctx context.Context) (int, error)
}

// Jobs runs the periodic background tasks.
type Jobs struct {
	retrier  Retrier
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewJobs(retrier Retrier, interval time.Duration, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{
		retrier:  retrier,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background tasks.
func (j *Jobs) Start(ctx context.Context) {
	j.logger.Info("Starting background jobs", zap.Duration("retry_interval", j.interval))

	j.wg.Add(1)
	go j.runRetryTask(ctx)
}

// Stop stops the background tasks and waits for a running retry to finish.
func (j *Jobs) Stop() {
	j.stopOnce.Do(func() {
		j.logger.Info("Stopping background jobs")
		close(j.stopChan)
	})
	j.wg.Wait()
}

func (j *Jobs) runRetryTask(ctx context.Context) {
	defer j.wg.Done()

	// first pass right after start
	j.retry(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.retry(ctx)
		case <-j.stopChan:
			j.logger.Info("Retry task stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Retry task cancelled")
			return
		}
	}
}

func (j *Jobs) retry(ctx context.Context) {
	j.logger.Info("Retrying unresourced sessions")

	ran, err := j.retrier.RetryUnresourced(ctx)
	if err != nil {
		j.logger.Error("Retry finished with errors", zap.Int("courses", ran), zap.Error(err))
		return
	}
	j.logger.Info("Retry completed", zap.Int("courses", ran))
}
