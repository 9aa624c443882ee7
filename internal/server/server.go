// Package server exposes a data provider over HTTP with the simple-rest
// protocol, so a rest.Provider on another machine can talk to a local
// store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/admincache/internal/provider"
)

// APIPrefix is the route group of the resource endpoints.
const APIPrefix = "/api"

// Server is the gin router in front of a data provider.
type Server struct {
	provider provider.DataProvider
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	origins  []string
	health   func(context.Context) error
	router   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRegistry registers the server's collectors on reg and serves reg on
// /metrics. Without it /metrics serves the default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		reg.MustRegister(s.requests)
		s.gatherer = reg
	}
}

// WithAllowOrigins sets the CORS origins. The default allows every origin.
func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithHealthCheck makes /healthz report check's error.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// New creates a server answering with dp.
func New(dp provider.DataProvider, opts ...Option) *Server {
	s := &Server{
		provider: dp,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admincache",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		health: func(context.Context) error { return nil },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Range"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.origins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.origins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group(APIPrefix)
	{
		api.GET("/:resource", s.handleList)
		api.POST("/:resource", s.handleCreate)
		api.GET("/:resource/:id", s.handleGetOne)
		api.PUT("/:resource/:id", s.handleUpdate)
		api.DELETE("/:resource/:id", s.handleDelete)
	}
	return r
}

// observe logs and counts every request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes err as a simple-rest error body.
func (s *Server) fail(c *gin.Context, err error) {
	status := provider.StatusOf(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
