package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/mythgate/internal/application/workers"
	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/internal/ports"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// JobManager submits and reads asynchronous analyses
type JobManager interface {
	Submit(ctx context.Context, req domain.AnalysisRequest) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
}

// PoolHealth reports worker pool health
type PoolHealth interface {
	GetStatus() *workers.HealthStatus
}

// Server represents the HTTP API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	service ports.AnalysisService
	jobs    JobManager
	health  PoolHealth
	storage ports.StateStorage
	metrics http.Handler
	logger  *zap.Logger
}

// Config holds HTTP server configuration. Jobs, Health and Storage are optional.
type Config struct {
	Port    int
	Service ports.AnalysisService
	Jobs    JobManager
	Health  PoolHealth
	Storage ports.StateStorage
	// Metrics defaults to the default Prometheus registry handler
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(cfg.Logger))

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	s := &Server{
		router:  router,
		service: cfg.Service,
		jobs:    cfg.Jobs,
		health:  cfg.Health,
		storage: cfg.Storage,
		metrics: metrics,
		logger:  cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics))

	// Kept at the root for existing clients
	s.router.POST("/analyze", s.handleAnalyze)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyses", s.handleSubmitAnalysis)
		v1.GET("/analyses/:id", s.handleGetAnalysis)
	}
}

// SetupWebSocket adds the job stream handler to the server
func (s *Server) SetupWebSocket(handler interface{ HandleJobStream(*gin.Context) }) {
	s.router.GET("/api/v1/analyses/:id/ws", handler.HandleJobStream)
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
