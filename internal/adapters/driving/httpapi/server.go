// Package httpapi exposes the audit, upload and policy services over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/claimaudit/internal/core/ports/driving"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// ErrMissingAuditService is returned when the audit service is not provided.
var ErrMissingAuditService = errors.New("httpapi: audit service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Audit driving.AuditService

	// Optional. Routes for a nil port answer 503.
	Upload    driving.UploadService
	Advisor   driving.PolicyAdvisor
	Ingestion driving.IngestionService
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks = append(s.checks, namedCheck{name: name, check: check})
	}
}

type namedCheck struct {
	name  string
	check HealthCheck
}

// Server is the HTTP request layer.
type Server struct {
	ports   Ports
	metrics http.Handler
	checks  []namedCheck
	router  *gin.Engine
}

// NewServer builds the router.
func NewServer(ports Ports, opts ...Option) (*Server, error) {
	if ports.Audit == nil {
		return nil, ErrMissingAuditService
	}
	s := &Server{ports: ports}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	if logger.IsVerbose() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	router.GET("/healthz", s.healthz)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	upload := router.Group("/upload")
	{
		upload.POST("/policy", s.uploadPolicy)
		upload.POST("/claim/:client_id/:type", s.uploadClaim)
	}

	ask := router.Group("/ask")
	{
		ask.POST("/evaluate-claim", s.evaluateClaim)
		ask.POST("/policy", s.askPolicy)
	}

	router.GET("/investigations/:id/progress", s.progress)
	router.GET("/audit", s.auditList)
	router.GET("/audit/:id", s.auditEntry)
	router.GET("/ingestion", s.ingestionStatus)

	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("HTTP API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}
