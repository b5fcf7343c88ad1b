// Package container provides dependency injection and lifecycle management
// for the purchase approval service.
package container

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/dispatcher"
	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/application/service"
	"github.com/garyjia/purchase-approval/internal/config"
	infraLark "github.com/garyjia/purchase-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/purchase-approval/internal/infrastructure/metrics"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/purchase-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/purchase-approval/internal/infrastructure/worker"
	"github.com/garyjia/purchase-approval/pkg/database"
	"github.com/garyjia/purchase-approval/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Run(database.Migrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (service.Repositories, error) {
	if db == nil {
		return service.Repositories{}, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return service.Repositories{}, fmt.Errorf("logger is required")
	}

	return service.Repositories{
		Requests:      repository.NewRequestRepository(db.DB, logger),
		Steps:         repository.NewApprovalStepRepository(db.DB, logger),
		AuditLogs:     repository.NewAuditLogRepository(db.DB, logger),
		Rules:         repository.NewRuleRepository(db.DB, logger),
		Users:         repository.NewUserRepository(db.DB, logger),
		Notifications: repository.NewNotificationRepository(db.DB, logger),
	}, nil
}

// ProvideMessageSender returns the Lark messenger when delivery is enabled,
// otherwise a sender that only logs.
func ProvideMessageSender(cfg config.LarkConfig, logger *zap.Logger) port.MessageSender {
	if !cfg.Enabled {
		logger.Info("Lark delivery disabled, notifications are logged only")
		return infraLark.NewDryRunMessenger(logger)
	}

	sdk := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		Domain:    cfg.Domain,
		Timeout:   cfg.APITimeout,
	}, logger)
	return infraLark.NewMessenger(sdk, logger)
}

// ProvideMetrics returns nil when metrics are disabled.
func ProvideMetrics(cfg config.MetricsConfig) *metrics.Registry {
	if !cfg.Enabled {
		return nil
	}
	return metrics.NewRegistry(cfg.Namespace)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
	), nil
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Requests      service.RequestService
	Approvals     service.ApprovalService
	Audit         service.AuditService
	Rules         service.RuleService
	Notifications service.NotificationService
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos        service.Repositories
	TxManager    port.TransactionManager
	Dispatcher   dispatcher.Dispatcher
	Sender       port.MessageSender
	Metrics      *metrics.Registry
	MaxAttempts  int
	PendingGrace time.Duration
	Logger       *zap.Logger
}

// ProvideServices creates the application services and subscribes
// notification delivery to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}

	// a nil *Registry must not reach the services as a non-nil interface
	workflowMetrics := service.NopMetrics()
	if deps.Metrics != nil {
		workflowMetrics = deps.Metrics
	}

	kv := utils.NewKVLogger(deps.Logger)
	machine := service.NewStateMachine(deps.Repos.Requests, deps.Repos.AuditLogs)

	notifications := service.NewNotificationService(deps.Repos, deps.Dispatcher, deps.Sender, workflowMetrics, deps.MaxAttempts, kv,
		service.WithPendingGrace(deps.PendingGrace))
	notifications.RegisterHandlers(deps.Dispatcher)

	return &ServiceBundle{
		Requests:      service.NewRequestService(deps.Repos, deps.TxManager, machine, workflowMetrics, kv),
		Approvals:     service.NewApprovalService(deps.Repos, deps.TxManager, machine, notifications, workflowMetrics, kv),
		Audit:         service.NewAuditService(deps.Repos.Requests, deps.Repos.AuditLogs, deps.Repos.Users, kv),
		Rules:         service.NewRuleService(deps.Repos.Rules, kv),
		Notifications: notifications,
	}, nil
}

// ProvideWorkers registers the background workers without starting them.
func ProvideWorkers(cfg config.NotificationConfig, notifications service.NotificationService, logger *zap.Logger) (*worker.Manager, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification service is required")
	}

	manager := worker.NewManager(logger)
	manager.Register(worker.NewNotificationRetrier(worker.RetrierConfig{
		PollInterval: cfg.RetryInterval,
		BatchSize:    cfg.RetryBatch,
	}, notifications, logger))
	return manager, nil
}
