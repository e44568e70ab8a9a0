// Package http exposes the case workflow and validation operations over HTTP.
// It only translates requests into application calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/icsr-workflow/internal/application/service"
	"github.com/garyjia/icsr-workflow/internal/application/validation"
	"github.com/garyjia/icsr-workflow/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MetricsPath  string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MetricsPath:  "/metrics",
	}
}

// ReportExporter renders a case's stored validation run
type ReportExporter interface {
	ExportValidationReport(ctx context.Context, caseID string) ([]byte, error)
}

// RequestObserver records served requests
type RequestObserver interface {
	ObserveRequest(route, method string, status int, duration time.Duration)
}

// HealthFunc reports per-component health. A false entry marks the service degraded.
type HealthFunc func() map[string]bool

// Services groups the application services the server routes to
type Services struct {
	Workflow      workflow.WorkflowEngine
	Validation    validation.Engine
	Rules         validation.RuleService
	Assignments   service.AssignmentService
	Comments      service.CommentService
	Notes         service.NoteService
	Notifications service.NotificationService
	Reports       ReportExporter
}

// ServerOption configures optional server features
type ServerOption func(*Server)

// WithMetrics records request metrics and serves handler at the configured metrics path
func WithMetrics(observer RequestObserver, handler http.Handler) ServerOption {
	return func(s *Server) {
		s.observer = observer
		s.metricsHandler = handler
	}
}

// WithHealth sets the component health source for /health
func WithHealth(fn HealthFunc) ServerOption {
	return func(s *Server) { s.health = fn }
}

// Server is the HTTP server adapter
type Server struct {
	config         ServerConfig
	httpServer     *http.Server
	router         *gin.Engine
	services       Services
	observer       RequestObserver
	metricsHandler http.Handler
	health         HealthFunc
	logger         Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
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
	if s.observer != nil {
		s.router.Use(s.metricsMiddleware())
	}
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
			"user_id", c.GetHeader(HeaderUserID),
		)
	}
}

// metricsMiddleware labels requests by route template, not raw path
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.observer.ObserveRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.health, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.metricsHandler != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(s.metricsHandler))
	}

	api := s.router.Group("/api/v1", requireCaller())
	{
		api.GET("/workflow/actions", h.GetAvailableActions)

		cases := api.Group("/cases/:id")
		cases.GET("/workflow", h.GetCaseWorkflowDetails)
		cases.GET("/workflow/status", h.GetCaseWorkflowStatus)
		cases.GET("/workflow/actions", h.GetAvailableActionsForCase)
		cases.POST("/workflow/transition", h.Transition)
		cases.GET("/history", h.GetCaseHistory)

		cases.POST("/assignments", h.CreateAssignment)
		cases.GET("/assignments", h.GetAssignmentHistory)
		cases.GET("/assignments/current", h.GetCurrentAssignment)

		cases.POST("/comments", h.AddComment)
		cases.GET("/comments", h.GetComments)
		cases.POST("/notes", h.AddNote)
		cases.GET("/notes", h.GetNotes)

		cases.POST("/validation", h.RunValidation)
		cases.GET("/validation", h.GetValidationResults)
		cases.POST("/validation/acknowledge", h.AcknowledgeWarnings)
		cases.GET("/validation/report", h.ExportValidationReport)

		api.POST("/notes/:noteId/resolve", h.ResolveNote)

		api.GET("/me/cases", h.GetMyCases)
		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/:notificationId/read", h.MarkNotificationRead)

		rules := api.Group("/rules")
		rules.GET("", h.GetRules)
		rules.POST("", h.CreateRule)
		rules.POST("/test", h.TestRule)
		rules.POST("/seed", h.SeedSystemRules)
		rules.GET("/:ruleId", h.GetRule)
		rules.PUT("/:ruleId", h.UpdateRule)
		rules.PATCH("/:ruleId/active", h.ToggleRule)
		rules.DELETE("/:ruleId", h.DeleteRule)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
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
