// Package http exposes the workflow engine over a JSON API.
// This is a thin adapter layer that translates HTTP requests to engine calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ringi/internal/application/workflow"
	domainwf "github.com/garyjia/ringi/internal/domain/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	engine     workflow.Engine
	metrics    http.Handler
	clock      domainwf.Clock
	probe      func(ctx context.Context) error
	logger     Logger
}

// ServerOption customises a Server
type ServerOption func(*Server)

// WithMetricsHandler mounts h on GET /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithClock sets the clock used to flag overdue steps
func WithClock(clock domainwf.Clock) ServerOption {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithHealthProbe makes /health report 503 while probe fails
func WithHealthProbe(probe func(ctx context.Context) error) ServerOption {
	return func(s *Server) {
		s.probe = probe
	}
}

// NewServer creates a new HTTP server in front of engine
func NewServer(config ServerConfig, engine workflow.Engine, logger Logger, opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config: config,
		router: gin.New(),
		engine: engine,
		clock:  domainwf.SystemClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"tenant_id", c.GetHeader(HeaderTenantID),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.engine, s.clock, s.logger)
	handlers.probe = s.probe

	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := s.router.Group("/api/v1")
	api.Use(identityMiddleware())
	{
		// Definitions
		api.POST("/definitions", handlers.CreateDefinition)
		api.GET("/definitions", handlers.ListDefinitions)
		api.POST("/definitions/validate", handlers.ValidateDefinition)
		api.GET("/definitions/:id", handlers.GetDefinition)
		api.PUT("/definitions/:id", handlers.UpdateDefinition)
		api.POST("/definitions/:id/publish", handlers.PublishDefinition)
		api.POST("/definitions/:id/archive", handlers.ArchiveDefinition)

		// Instances
		api.POST("/instances", handlers.CreateInstance)
		api.GET("/instances", handlers.ListMyInstances)
		api.GET("/instances/:number", handlers.GetInstance)
		api.PUT("/instances/:number", handlers.UpdateDraft)
		api.POST("/instances/:number/submit", handlers.SubmitInstance)
		api.POST("/instances/:number/resubmit", handlers.ResubmitInstance)
		api.POST("/instances/:number/cancel", handlers.CancelInstance)

		// Steps
		api.POST("/instances/:number/steps/:step/approve", handlers.ApproveStep)
		api.POST("/instances/:number/steps/:step/reject", handlers.RejectStep)
		api.POST("/instances/:number/steps/:step/request-changes", handlers.RequestChanges)

		// Comments
		api.GET("/instances/:number/comments", handlers.ListComments)
		api.POST("/instances/:number/comments", handlers.PostComment)

		// Tasks
		api.GET("/tasks", handlers.ListMyTasks)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

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
		s.logger.Error("HTTP server error", "error", err)
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

	srv := s.httpServer
	s.httpServer = nil
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
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
