// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/purchase-approval/internal/application/policy"
	"github.com/garyjia/purchase-approval/internal/application/port"
	"github.com/garyjia/purchase-approval/internal/application/service"
	"github.com/garyjia/purchase-approval/pkg/jwt"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath is where Prometheus scrapes; empty disables the endpoint
	MetricsPath string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// Services bundles the application services behind the routes
type Services struct {
	Requests  service.RequestService
	Approvals service.ApprovalService
	Audit     service.AuditService
	Rules     service.RuleService
}

// TokenParser verifies bearer tokens
type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// HTTPMetrics records request outcomes and exposes the scrape handler
type HTTPMetrics interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
	Handler() http.Handler
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	users      port.UserRepository
	tokens     TokenParser
	metrics    HTTPMetrics
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given services.
// metrics may be nil.
func NewServer(
	config ServerConfig,
	services Services,
	requestPolicy *policy.RequestPolicy,
	users port.UserRepository,
	tokens TokenParser,
	metrics HTTPMetrics,
	logger *zap.Logger,
) *Server {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	gin.SetMode(config.Mode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(services, requestPolicy, logger),
		users:    users,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(RequestID())
	s.router.Use(Logging(s.logger))
	s.router.Use(CORS())
	if s.metrics != nil {
		s.router.Use(Metrics(s.metrics))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)
	if s.metrics != nil && s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api/v1")
	api.Use(Auth(s.tokens, s.users, s.logger))
	{
		requests := api.Group("/requests")
		requests.GET("", h.ListRequests)
		requests.POST("", h.CreateRequest)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", h.UpdateRequest)
		requests.POST("/:id/submit", h.SubmitRequest)
		requests.POST("/:id/resubmit", h.ResubmitRequest)
		requests.POST("/:id/cancel", h.CancelRequest)
		requests.POST("/:id/archive", h.ArchiveRequest)
		requests.POST("/:id/approve", h.ApproveRequest)
		requests.POST("/:id/reject", h.RejectRequest)
		requests.POST("/:id/return", h.ReturnRequest)
		requests.GET("/:id/audit", h.RequestAuditTrail)
		requests.GET("/:id/audit/export", h.ExportAuditTrail)

		api.GET("/approvals/inbox", h.Inbox)
		api.GET("/audit", h.ListAuditLogs)

		rules := api.Group("/rules")
		rules.GET("", h.ListRules)
		rules.POST("", h.CreateRule)
		rules.GET("/:id", h.GetRule)
		rules.PUT("/:id", h.UpdateRule)
		rules.DELETE("/:id", h.DeleteRule)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
