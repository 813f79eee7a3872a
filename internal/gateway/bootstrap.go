package gateway

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/modelgate/gateway/internal/config"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/custom"
	"github.com/modelgate/gateway/internal/store"
	storemodel "github.com/modelgate/gateway/internal/store/model"
	"go.uber.org/zap"
)

// Bootstrap syncs configured model routes into the store and installs all
// custom providers (from configuration and from the store) into the
// registry. A provider that fails to construct is skipped, never fatal.
func Bootstrap(ctx context.Context, repo store.Repository, registry *llm.Registry, cfg *config.Config, log *zap.Logger) int {
	if err := syncRoutes(ctx, repo, cfg.Routes); err != nil {
		log.Error("Failed to sync model routes", zap.Error(err))
	}

	registered := 0
	validate := validator.New()

	for _, pCfg := range cfg.CustomProviders {
		if err := validate.Struct(&pCfg); err != nil {
			log.Warn("Skipping custom provider with invalid configuration",
				zap.String("id", pCfg.ID), zap.Error(err))
			continue
		}
		if installCustom(registry, pCfg, log) {
			registered++
		}
	}

	stored, err := repo.CustomProviders().List(ctx)
	if err != nil {
		log.Error("Failed to load stored custom providers", zap.Error(err))
	}
	for _, p := range stored {
		if installCustom(registry, ProviderConfigFromRecord(&p), log) {
			registered++
		}
	}

	if registered == 0 {
		log.Info("No custom providers registered; built-in adapters only")
	}

	return registered
}

// installCustom constructs a custom adapter and registers it.
func installCustom(registry *llm.Registry, pCfg llm.ProviderConfig, log *zap.Logger) bool {
	adapter, err := custom.NewAdapter(pCfg)
	if err != nil {
		log.Error("Failed to initialize custom provider",
			zap.String("id", pCfg.ID), zap.Error(err))
		return false
	}
	registry.RegisterCustom(pCfg.ID, adapter)
	return true
}

// ProviderConfigFromRecord maps a stored custom provider row into adapter
// configuration.
func ProviderConfigFromRecord(p *storemodel.CustomProvider) llm.ProviderConfig {
	return llm.ProviderConfig{
		ID:      p.ID,
		Type:    "custom",
		Name:    p.Name,
		BaseURL: p.BaseURL,
		Config: map[string]string{
			"auth_header_name":      p.AuthHeaderName,
			"auth_value_template":   p.AuthValueTemplate,
			"api_version":           p.APIVersion,
			"models_path":           p.ModelsPath,
			"chat_completions_path": p.ChatCompletionsPath,
		},
	}
}

func syncRoutes(ctx context.Context, repo store.Repository, routes []config.RouteConfig) error {
	if len(routes) == 0 {
		return nil
	}

	records := make([]storemodel.ModelRoute, 0, len(routes))
	for _, r := range routes {
		// the alias doubles as the row id so re-syncs upsert in place
		records = append(records, storemodel.ModelRoute{
			ID:              r.Alias,
			Alias:           r.Alias,
			ProviderID:      r.Provider,
			ProviderModelID: r.Model,
			ContextWindow:   r.ContextWindow,
			IsEnabled:       true,
		})
	}
	return repo.Models().Sync(ctx, records)
}
