package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/internal/analytics"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/platform/metrics"
	"github.com/nulzo/reliability-forge/internal/platform/otel"
	"github.com/nulzo/reliability-forge/internal/server/middleware"
	v1 "github.com/nulzo/reliability-forge/internal/server/v1"
	"github.com/nulzo/reliability-forge/internal/server/validator"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Deps are the services behind the routes. Analytics and Metrics may be nil.
type Deps struct {
	Gateway   v1.Gateway
	Agent     v1.Agent
	Patterns  v1.PatternCatalog
	Analytics analytics.Service
	Metrics   *metrics.Metrics
	Version   string
}

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	deps      Deps
	validator *validator.Validator
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.Tracing(otel.ServiceName))
	engine.Use(middleware.Logger(logger))

	s := &Server{
		router:    engine,
		config:    cfg,
		logger:    logger,
		deps:      deps,
		validator: validator.New(),
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on server.port until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", s.config.Server.Port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Cancelling ctx stops accepting
// connections; requests already running keep their context and are given
// up to shutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
