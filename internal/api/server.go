// Package api exposes the report engine over HTTP for the external form
// renderer, importer and persistence collaborators: schema retrieval,
// validation, and the report archive.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/psma-report-engine/internal/codec"
	"github.com/psma-report-engine/internal/config"
	"github.com/psma-report-engine/internal/repository"
	"github.com/psma-report-engine/internal/schema"
	"github.com/psma-report-engine/internal/validator"
)

// Server is the HTTP API server.
type Server struct {
	configManager *config.Manager
	logger        *logrus.Logger
	registry      *schema.Registry
	validator     *validator.Validator
	codec         *codec.Codec
	store         *repository.Store

	router *gin.Engine
	server *http.Server
}

// NewServer creates the HTTP server with all routes and middleware wired.
func NewServer(configManager *config.Manager, logger *logrus.Logger, registry *schema.Registry, store *repository.Store) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(rateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	s := &Server{
		configManager: configManager,
		logger:        logger,
		registry:      registry,
		validator:     validator.New(logger),
		codec:         codec.New(registry),
		store:         store,
		router:        router,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the routed handler, used by tests and embedding servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/schemas", s.handleListSchemas)
		v1.GET("/schemas/:version", s.handleGetSchema)
		v1.POST("/reports/validate", s.handleValidateReport)
		v1.POST("/reports", s.handleCreateReport)
		v1.GET("/reports", s.handleListReports)
		v1.GET("/reports/:id", s.handleGetReport)
		v1.GET("/reports/:id/text", s.handleRenderReport)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     time.Now().UTC(),
		"latest_schema": s.registry.Latest(),
	})
}
