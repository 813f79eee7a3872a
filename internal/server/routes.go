package server

import (
	"github.com/modelgate/gateway/internal/server/middleware"
	v1 "github.com/modelgate/gateway/internal/server/v1"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler())

	if s.config.Tracing.Enabled {
		s.router.Use(otelgin.Middleware("modelgate"))
	}

	// Health Check (Public)
	healthHandler := v1.NewHealthHandler(s.version)
	s.router.GET("/health", healthHandler.Health)

	limiter := middleware.NewRateLimiter(
		s.config.RateLimit.RequestsPerSecond,
		s.config.RateLimit.Burst,
		s.logger,
	)

	// API V1 Group
	api := s.router.Group("/v1")
	api.Use(limiter.Middleware())
	api.Use(middleware.Auth(s.repo)) // Require API key for everything below
	{
		chatHandler := v1.NewChatHandler(s.service, s.validator)
		api.POST("/chat/completions", chatHandler.CreateCompletion)

		modelsHandler := v1.NewModelHandler(s.service)
		api.GET("/models", modelsHandler.ListModels)

		analyticsHandler := v1.NewAnalyticsHandler(s.analytics)
		api.GET("/analytics/usage", analyticsHandler.GetUsage)
		api.GET("/analytics/requests", analyticsHandler.GetRecentRequests)

		adminHandler := v1.NewAdminHandler(s.repo, s.registry, s.service, s.validator)
		admin := api.Group("/admin")
		{
			admin.GET("/providers", adminHandler.ListProviders)
			admin.POST("/providers", adminHandler.CreateProvider)
			admin.GET("/providers/:id", adminHandler.GetProvider)
			admin.PUT("/providers/:id", adminHandler.UpdateProvider)
			admin.DELETE("/providers/:id", adminHandler.DeleteProvider)

			admin.PUT("/credentials/:provider", adminHandler.StoreCredentials)
			admin.DELETE("/credentials/:provider", adminHandler.DeleteCredentials)
			admin.POST("/credentials/:provider/validate", adminHandler.ValidateCredentials)
		}
	}
}
