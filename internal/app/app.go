// Package app wires configuration into the running object graph shared by
// the server and the command line tools.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/nulzo/reliability-forge/internal/agent"
	"github.com/nulzo/reliability-forge/internal/analytics"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/gateway"
	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/nulzo/reliability-forge/internal/platform/metrics"
	"github.com/nulzo/reliability-forge/internal/store"
	"github.com/nulzo/reliability-forge/internal/store/cache"
	"github.com/nulzo/reliability-forge/internal/store/cache/memory"
	"github.com/nulzo/reliability-forge/internal/store/cache/redis"
	"github.com/nulzo/reliability-forge/internal/store/sqlite"
	"github.com/nulzo/reliability-forge/internal/templates"
	"go.uber.org/zap"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Router   *gateway.Router
	Resolver *templates.Resolver
	Pipeline *pipeline.Pipeline
	Agent    *agent.Agent

	// nil unless store.enabled
	Repo      store.Repository
	Ingestor  analytics.Ingestor
	Analytics analytics.Service

	closers []func() error
}

type Option func(*settings)

type settings struct {
	gatewayOpts []gateway.Option
}

// WithGatewayOptions appends options to the router construction, e.g. a
// client factory in tests.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(s *settings) { s.gatewayOpts = append(s.gatewayOpts, opts...) }
}

// New builds every component cfg enables. Nothing is started; call Start.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	gwOpts := []gateway.Option{gateway.WithLogger(logger), gateway.WithMetrics(a.Metrics)}
	if cfg.Cache.Enabled {
		c, err := a.newCache(ctx)
		if err != nil {
			return nil, err
		}
		gwOpts = append(gwOpts, gateway.WithCache(c, cfg.Cache.TTL))
	}

	router, err := gateway.New(cfg, append(gwOpts, s.gatewayOpts...)...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Router = router

	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithModel(cfg.Pipeline.Model),
		pipeline.WithGenerationModels(cfg.Pipeline.GenerationModels),
		pipeline.WithMaxTokens(cfg.LLM.MaxTokens),
		pipeline.WithMetrics(a.Metrics),
	}

	if cfg.Store.Enabled {
		repo, err := sqlite.NewSQLiteStorage(cfg.Store.DSN, logger)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Repo = repo
		a.Ingestor = analytics.NewIngestor(logger, repo)
		a.Analytics = analytics.NewService(repo)
		a.closers = append(a.closers, repo.Close)
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(a.Ingestor))
	}

	a.Resolver = templates.NewResolver(cfg.Pipeline.TemplatesDir)
	a.Pipeline = pipeline.New(router, a.Resolver, pipeOpts...)
	a.Agent = agent.New(a.Pipeline, agent.WithLogger(logger))

	return a, nil
}

func (a *App) newCache(ctx context.Context) (cache.CacheService, error) {
	switch a.Config.Cache.Backend {
	case "", "memory":
		return memory.NewMemoryCache(), nil
	case "redis":
		rc, err := redis.NewRedisCache(ctx, a.Config.Cache.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", a.Config.Cache.Backend)
	}
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	if a.Ingestor != nil {
		a.Ingestor.Start(ctx)
	}
}

// Close flushes pending run records, then releases connections.
func (a *App) Close() error {
	if a.Ingestor != nil {
		a.Ingestor.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
