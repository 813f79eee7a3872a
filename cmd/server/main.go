package main

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelgate/gateway/cmd"
	"github.com/modelgate/gateway/internal/analytics"
	"github.com/modelgate/gateway/internal/config"
	"github.com/modelgate/gateway/internal/gateway"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/internal/platform/otel"
	"github.com/modelgate/gateway/internal/router"
	"github.com/modelgate/gateway/internal/server"
	"github.com/modelgate/gateway/internal/store/cache"
	"github.com/modelgate/gateway/internal/store/sqlite"
	"go.uber.org/zap"

	// Import adapters to trigger init() registration
	_ "github.com/modelgate/gateway/internal/llm/anthropic"
	_ "github.com/modelgate/gateway/internal/llm/azure"
	_ "github.com/modelgate/gateway/internal/llm/bedrock"
	_ "github.com/modelgate/gateway/internal/llm/gemini"
	_ "github.com/modelgate/gateway/internal/llm/groq"
	_ "github.com/modelgate/gateway/internal/llm/mistral"
	_ "github.com/modelgate/gateway/internal/llm/openai"
	_ "github.com/modelgate/gateway/internal/llm/vertex"
)

func main() {
	logger.Initialize(logger.DefaultConfig())
	defer logger.Sync()
	log := logger.Get()

	cmd.CheckForUpdates()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN, encryptionKey(cfg, log))
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() {
		_ = repo.Close()
	}()

	var cacheSvc cache.CacheService
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			_ = redisCache.Close()
		}()
		cacheSvc = redisCache
	} else {
		cacheSvc = cache.NewMemoryCache()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer("modelgate", log, os.Stdout)
		if err != nil {
			log.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				_ = shutdown(context.Background())
			}()
		}
	}

	registry := llm.NewRegistry()
	resolver := router.NewResolver(repo, registry, cacheSvc)

	ingestor := analytics.NewIngestor(log, repo)
	ingestor.Start(ctx)
	defer ingestor.Stop()

	service := gateway.NewService(log, repo, resolver, registry, ingestor)
	registered := gateway.Bootstrap(ctx, repo, registry, cfg, log)
	log.Info("Gateway bootstrapped", zap.Int("custom_providers", registered))

	analyticsSvc := analytics.NewService(repo)

	srv := server.New(cfg, log, repo, registry, service, analyticsSvc, cmd.AppVersion)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting gateway", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// encryptionKey decodes the configured credential key. Hex keys are decoded;
// raw 32-byte strings pass through.
func encryptionKey(cfg *config.Config, log *zap.Logger) []byte {
	key := cfg.Database.EncryptionKey
	if key == "" {
		log.Fatal("database.encryption_key is required (32 bytes, hex or raw)")
	}
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		return decoded
	}
	return []byte(key)
}
