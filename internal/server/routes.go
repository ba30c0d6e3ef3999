package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/reliability-forge/internal/server/middleware"
	v1 "github.com/nulzo/reliability-forge/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.ErrorHandler(s.logger))

	healthHandler := v1.NewHealthHandler(s.deps.Version, s.deps.Gateway, s.deps.Analytics != nil)
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	api := s.router.Group("/v1")
	if rl := s.config.Server.RateLimit; rl.RequestsPerSecond > 0 {
		api.Use(middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, s.logger).Middleware())
	}
	{
		modelHandler := v1.NewModelHandler(s.deps.Gateway, s.deps.Patterns)
		api.GET("/models", modelHandler.ListModels)
		api.GET("/patterns", modelHandler.ListPatterns)

		chatHandler := v1.NewChatHandler(s.deps.Gateway, s.validator)
		api.POST("/chat", chatHandler.CreateChat)

		runHandler := v1.NewRunHandler(s.deps.Agent, s.validator)
		api.POST("/run", runHandler.CreateRun)

		analyticsHandler := v1.NewAnalyticsHandler(s.deps.Analytics)
		api.GET("/runs", analyticsHandler.ListRuns)
		api.GET("/runs/:id", analyticsHandler.GetRun)
		api.GET("/usage", analyticsHandler.GetUsage)

		configHandler := v1.NewConfigHandler(s.config)
		api.GET("/config", configHandler.Get)
	}
}
