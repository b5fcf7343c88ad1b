package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationRedeliverer is the part of the notification service the retrier drives
type NotificationRedeliverer interface {
	RetryFailed(ctx context.Context, limit int) (int, error)
}

// RetrierConfig holds configuration for the notification retrier
type RetrierConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultRetrierConfig returns default configuration
func DefaultRetrierConfig() RetrierConfig {
	return RetrierConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
	}
}

// RetrierStats is a snapshot of the retrier's counters
type RetrierStats struct {
	Passes    int
	Delivered int
	LastRun   time.Time
	LastError error
}

// NotificationRetrier periodically redelivers FAILED and stale PENDING outbox rows
type NotificationRetrier struct {
	config  RetrierConfig
	service NotificationRedeliverer
	logger  *zap.Logger

	mu      sync.RWMutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	stats   RetrierStats
}

// NewNotificationRetrier creates a new notification retrier
func NewNotificationRetrier(config RetrierConfig, service NotificationRedeliverer, logger *zap.Logger) *NotificationRetrier {
	defaults := DefaultRetrierConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &NotificationRetrier{
		config:  config,
		service: service,
		logger:  logger,
	}
}

// Start begins the polling loop
func (w *NotificationRetrier) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("notification retrier already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("NotificationRetrier started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop terminates the loop and waits for an in-flight pass to finish
func (w *NotificationRetrier) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationRetrier stopped",
		zap.Int("passes", stats.Passes),
		zap.Int("delivered", stats.Delivered))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRetrier) Name() string {
	return "NotificationRetrier"
}

// Stats returns a snapshot of the counters
func (w *NotificationRetrier) Stats() RetrierStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *NotificationRetrier) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *NotificationRetrier) runOnce(ctx context.Context) {
	delivered, err := w.service.RetryFailed(ctx, w.config.BatchSize)
	if err != nil && ctx.Err() == nil {
		w.logger.Error("Notification retry pass failed", zap.Error(err))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Passes++
	w.stats.Delivered += delivered
	w.stats.LastRun = time.Now()
	w.stats.LastError = err
}
