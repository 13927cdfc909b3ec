// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the research agent over HTTP with gin. It serves
// blocking and streaming research endpoints, the run archive, health and
// Prometheus metrics, and the prebuilt frontend bundle under /app.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/archive"
	"github.com/pdiddy/research-agent/internal/metrics"
	"github.com/pdiddy/research-agent/internal/research"
	"github.com/pdiddy/research-agent/pkg/types"
)

const defaultAddr = ":8123"

// Runner executes one research request. *research.Agent implements it.
type Runner interface {
	Run(ctx context.Context, req research.Request) (types.Result, error)
}

// Archive stores completed runs. *archive.Store implements it.
type Archive interface {
	Save(ctx context.Context, res types.Result) error
	Get(ctx context.Context, runID string) (types.Result, error)
	List(ctx context.Context, opts archive.QueryOptions) ([]archive.Summary, error)
}

// Server wires the HTTP routes to a Runner.
type Server struct {
	Engine *gin.Engine

	runner  Runner
	archive Archive
	cfg     types.ServerConfig
	logger  *zap.Logger
}

// New builds the engine and registers every route. store may be nil, in
// which case the run routes are not registered and results are not saved.
func New(runner Runner, store Archive, cfg types.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := gin.New()
	s := &Server{
		Engine:  engine,
		runner:  runner,
		archive: store,
		cfg:     cfg,
		logger:  logger,
	}

	engine.Use(gin.Recovery(), s.observe)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	api.POST("/research", s.research)
	api.POST("/research/stream", s.stream)
	if store != nil {
		api.GET("/runs", s.listRuns)
		api.GET("/runs/:id", s.getRun)
	}

	if cfg.FrontendDir != "" {
		s.setupFrontend(cfg.FrontendDir)
	}
	return s
}

// Start serves on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	srv := &http.Server{Addr: addr, Handler: s.Engine}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// observe logs each request and counts it by route template.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	code := c.Writer.Status()
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.Int("status", code),
		zap.Duration("duration", time.Since(start)))
}

// setupFrontend serves the built bundle under /app. Unknown /app paths fall
// back to index.html so client-side routing works.
func (s *Server) setupFrontend(buildDir string) {
	absBuildPath, err := filepath.Abs(buildDir)
	if err != nil {
		s.logger.Warn("could not resolve frontend directory", zap.String("dir", buildDir), zap.Error(err))
		s.Engine.Any("/app/*path", func(c *gin.Context) {
			c.String(http.StatusServiceUnavailable, "Frontend build path could not be resolved. Check server configuration.")
		})
		return
	}

	indexPath := filepath.Join(absBuildPath, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		s.logger.Warn("frontend not built", zap.String("dir", absBuildPath), zap.Error(err))
		s.Engine.Any("/app/*path", func(c *gin.Context) {
			c.String(http.StatusServiceUnavailable, "Frontend not built or incomplete. Run 'npm run build' in the frontend directory.")
		})
		return
	}

	s.Engine.StaticFS("/app", http.Dir(absBuildPath))
	s.Engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/app/") {
			http.ServeFile(c.Writer, c.Request, indexPath)
			return
		}
		c.Status(http.StatusNotFound)
	})
	s.logger.Info("serving frontend", zap.String("dir", absBuildPath))
}
