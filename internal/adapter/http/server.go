package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
)

// A radius search fans out to two upstreams per river, so requests get more
// room than the per-call upstream timeout.
const requestTimeout = 30 * time.Second

// ConditionsService is the subset of conditions.Service the API needs.
type ConditionsService interface {
	Rank(ctx context.Context, ref domain.Coordinate, radiusMiles float64) ([]domain.ConditionRecord, error)
	Detail(ctx context.Context, id int) (domain.ConditionRecord, error)
	ResolveZip(ctx context.Context, zip string) (domain.Coordinate, error)
}

// Defaults apply when a request omits its reference location or radius.
type Defaults struct {
	Reference   domain.Coordinate
	RadiusMiles float64
}

// Server exposes the conditions API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	service    ConditionsService
	defaults   Defaults
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /api/v1, /healthz, /readyz, and /metrics routes.
func NewServer(addr string, svc ConditionsService, defaults Defaults, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: requestTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:   engine,
		service:  svc,
		defaults: defaults,
		logger:   logger,
	}

	engine.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	engine.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(ready)))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/api/v1")
	v1.GET("/rivers", s.handleListRivers)
	v1.GET("/rivers/:id", s.handleGetRiver)
	v1.GET("/geocode/:zip", s.handleGeocode)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
