// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/orchestrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 5 * time.Second

// Querier answers questions.
type Querier interface {
	Query(ctx context.Context, q core.Query) (core.MergedResult, error)
	Stream(ctx context.Context, q core.Query) (<-chan orchestrator.Event, error)
	Feedback(key string, accurate bool) error
}

// Ingester accepts upstream changes and runs ingestion jobs.
type Ingester interface {
	Notify(update core.EntityUpdate) error
	StartJob(ctx context.Context, kind core.JobKind) (string, error)
	JobStatus(ctx context.Context, id string) (core.IngestJob, error)
	ListJobs(ctx context.Context, limit int) ([]core.IngestJob, error)
}

var _ Querier = (*orchestrator.Orchestrator)(nil)

// Server is the HTTP front end.
type Server struct {
	querier         Querier
	ingester        Ingester
	gatherer        prometheus.Gatherer
	requests        *prometheus.CounterVec
	shutdownTimeout time.Duration
	logger          *slog.Logger
	router          *gin.Engine
}

// Option configures a Server.
type Option func(*Server) error

// WithIngester enables the webhook and job routes. Without one they answer 501.
func WithIngester(ingester Ingester) Option {
	return func(s *Server) error {
		s.ingester = ingester
		return nil
	}
}

// WithRegistry serves reg on /metrics and counts requests into it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) error {
		if reg == nil {
			return nil
		}
		s.gatherer = reg
		s.requests = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"})
		return nil
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d <= 0 {
			return fmt.Errorf("shutdown timeout must be positive, got %s", d)
		}
		s.shutdownTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewServer builds the router.
func NewServer(querier Querier, opts ...Option) (*Server, error) {
	if querier == nil {
		return nil, ErrQuerierRequired
	}

	s := &Server{
		querier:         querier,
		gatherer:        prometheus.DefaultGatherer,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "httpapi")
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggerMiddleware())

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	v1.POST("/query", s.query)
	v1.POST("/feedback", s.feedback)
	v1.POST("/entities/updates", s.updates)
	v1.POST("/jobs", s.startJob)
	v1.GET("/jobs", s.listJobs)
	v1.GET("/jobs/:id", s.jobStatus)

	return router
}

// Handler returns the router for embedding in another server or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting HTTP server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Debug("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// loggerMiddleware logs each request and counts it when a registry is set.
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if s.requests != nil {
			s.requests.WithLabelValues(c.Request.Method, route, fmt.Sprint(status)).Inc()
		}
		s.logger.Debug("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size())
	}
}
