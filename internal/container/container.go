package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/dispatcher"
	"github.com/garyjia/purchase-approval/internal/application/policy"
	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/application/service"
	"github.com/garyjia/purchase-approval/internal/config"
	"github.com/garyjia/purchase-approval/internal/infrastructure/metrics"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/purchase-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/purchase-approval/internal/interfaces/http"
	"github.com/garyjia/purchase-approval/pkg/database"
	"github.com/garyjia/purchase-approval/pkg/jwt"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	tx           *sqlite.DB
	repositories service.Repositories

	// Infrastructure - External
	sender  port.MessageSender
	metrics *metrics.Registry
	tokens  *jwt.Manager

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	policy     *policy.RequestPolicy

	// Workers
	workers *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. External clients (Lark, metrics, token verification)
// 3. Event dispatcher and application services
// 4. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize external clients
	c.initExternalClients()
	c.logger.Info("External clients initialized")

	// Step 3: Initialize dispatcher and services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 4: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers (reverse of step 4)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Drain in-flight notification deliveries before the database goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errors.Join(errs...))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true if the container is fully initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns the health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		mark("database", false, "not initialized")
	default:
		if err := c.db.Ping(); err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	}

	if c.workers != nil {
		mark("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	} else {
		mark("workers", false, "not initialized")
	}

	if c.dispatcher != nil {
		mark("dispatcher", true, "")
	} else {
		mark("dispatcher", false, "not initialized")
	}

	if c.sender != nil {
		mark("notifier", true, c.sender.Name())
	} else {
		mark("notifier", false, "not initialized")
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.tx = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		_ = c.db.Close()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternalClients() {
	c.sender = ProvideMessageSender(c.config.Lark, c.logger)
	c.metrics = ProvideMetrics(c.config.Metrics)
	c.tokens = jwt.NewManager(c.config.Auth.JWTSecret, c.config.Auth.Issuer, c.config.Auth.TokenTTL)
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Repos:        c.repositories,
		TxManager:    c.tx,
		Dispatcher:   c.dispatcher,
		Sender:       c.sender,
		Metrics:      c.metrics,
		MaxAttempts:  c.config.Notification.MaxAttempts,
		PendingGrace: c.config.Notification.PendingGrace,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	c.policy = policy.NewRequestPolicy(c.repositories.Steps)
	return nil
}

func (c *Container) initWorkers() error {
	manager, err := ProvideWorkers(c.config.Notification, c.services.Notifications, c.logger)
	if err != nil {
		return err
	}
	c.workers = manager

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// HTTPServer builds the HTTP adapter over the started container.
func (c *Container) HTTPServer() (*httpapi.Server, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() {
		return nil, fmt.Errorf("container not started")
	}

	cfg := c.config.Server
	serverCfg := httpapi.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Mode:            cfg.Mode,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	var httpMetrics httpapi.HTTPMetrics
	if c.metrics != nil {
		httpMetrics = c.metrics
		serverCfg.MetricsPath = c.config.Metrics.Path
	}

	return httpapi.NewServer(
		serverCfg,
		httpapi.Services{
			Requests:  c.services.Requests,
			Approvals: c.services.Approvals,
			Audit:     c.services.Audit,
			Rules:     c.services.Rules,
		},
		c.policy,
		c.repositories.Users,
		c.tokens,
		httpMetrics,
		c.logger.Named("http"),
	), nil
}

// Repositories returns all repositories.
func (c *Container) Repositories() service.Repositories {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Tokens returns the bearer token manager.
func (c *Container) Tokens() *jwt.Manager {
	return c.tokens
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
