package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Manager starts and stops background workers together
type Manager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
}

// NewManager creates a new worker manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		workers: make([]Worker, 0),
		logger:  logger,
	}
}

// Register adds a worker to be managed. Workers registered after StartAll are not started.
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts every registered worker. A worker that fails to start is
// logged and skipped; the joined start errors are returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("workers already running")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	workers := append([]Worker(nil), m.workers...)
	m.mu.Unlock()

	m.logger.Info("Starting all workers", zap.Int("count", len(workers)))

	var errs []error
	for _, w := range workers {
		if err := w.Start(workerCtx); err != nil {
			m.logger.Error("Failed to start worker",
				zap.String("worker_name", w.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		m.logger.Info("Worker started", zap.String("worker_name", w.Name()))
	}
	return errors.Join(errs...)
}

// StopAll cancels the shared context and stops every worker
func (m *Manager) StopAll() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	workers := append([]Worker(nil), m.workers...)
	m.mu.Unlock()

	m.logger.Info("Stopping all workers", zap.Int("count", len(workers)))
	if cancel != nil {
		cancel()
	}

	var errs []error
	for _, w := range workers {
		if err := w.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("worker_name", w.Name()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker_name", w.Name()))
	}
	return errors.Join(errs...)
}

// Count returns the number of registered workers
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// IsRunning returns whether workers are running
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
