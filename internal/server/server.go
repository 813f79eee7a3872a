package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/modelgate/gateway/internal/analytics"
	"github.com/modelgate/gateway/internal/config"
	"github.com/modelgate/gateway/internal/gateway"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/server/validator"
	"github.com/modelgate/gateway/internal/store"
	"go.uber.org/zap"
)

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	repo      store.Repository
	registry  *llm.Registry
	service   gateway.Service
	analytics analytics.Service
	validator *validator.Validator
	version   string
}

func New(cfg *config.Config, logger *zap.Logger, repo store.Repository, registry *llm.Registry, service gateway.Service, analyticsSvc analytics.Service, version string) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		router:    engine,
		config:    cfg,
		logger:    logger,
		repo:      repo,
		registry:  registry,
		service:   service,
		analytics: analyticsSvc,
		validator: validator.New(),
		version:   version,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
