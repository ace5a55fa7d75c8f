// Copyright 2026 © The ActionHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the registry, the generated artifacts and action
// dispatch over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jllopis/actionhub/pkg/audit"
	"github.com/jllopis/actionhub/pkg/dispatch"
	"github.com/jllopis/actionhub/pkg/generate"
	"github.com/jllopis/actionhub/pkg/health"
	"github.com/jllopis/actionhub/pkg/registry"
	"github.com/jllopis/actionhub/pkg/schema"
)

// Options wires the server to its collaborators. Registry and Dispatcher
// are required.
type Options struct {
	Registry   *registry.Registry
	Sources    registry.Sources
	Schemas    *schema.Compiler
	Dispatcher *dispatch.Dispatcher
	Health     *health.Provider
	Audit      audit.Store
	OpenAPI    generate.OpenAPIOptions
	Logger     *slog.Logger
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP front of the gateway.
type Server struct {
	opts   Options
	logger *slog.Logger
	engine *gin.Engine
}

// New builds the gin engine and registers every route.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Health == nil {
		opts.Health = health.NewProvider(0)
	}
	s := &Server{opts: opts, logger: logger}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	s.routes(engine)
	s.engine = engine
	return s
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)

	r.GET("/repos", s.listRepos)
	r.GET("/repos/:name", s.getRepo)
	r.GET("/capabilities", s.listCapabilities)
	r.GET("/capabilities/:id", s.getCapability)
	r.GET("/actions", s.listActions)
	r.GET("/actions/openapi", s.openAPI)
	r.GET("/actions/:id", s.getAction)
	r.POST("/actions/:id", s.dispatchAction)

	r.GET("/graph/services", s.serviceGraph)
	r.GET("/validate", s.validate)
	r.GET("/registry", s.registrySnapshot)
	r.GET("/executors", s.executors)
	r.GET("/audit", s.auditEntries)

	if s.opts.MCP != nil {
		r.Any("/mcp", gin.WrapH(s.opts.MCP))
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", slog.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("server.shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http.request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
