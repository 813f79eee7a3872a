// Package router resolves incoming model identifiers to a provider adapter
// and the caller's credentials for it. Resolution is a strict linear chain:
// stored alias first, then the provider:model form, then adapter lookup,
// then credentials. The first failure wins; there is no fallback routing.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/internal/store"
	"github.com/modelgate/gateway/internal/store/cache"
	"github.com/modelgate/gateway/internal/store/model"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

const aliasCacheTTL = 60 * time.Second

// ResolvedModel is the routing outcome for one identifier.
type ResolvedModel struct {
	ProviderID      string `json:"provider_id"`
	ProviderModelID string `json:"provider_model_id"`
	UnifiedID       string `json:"unified_id"`
	ContextLength   int    `json:"context_length,omitempty"`
}

// Resolution bundles everything a call needs: the resolved model, the
// adapter that serves it, and the team's decrypted credentials.
type Resolution struct {
	Model       ResolvedModel
	Provider    llm.Provider
	Credentials llm.Credentials
}

type Resolver struct {
	repo     store.Repository
	registry *llm.Registry
	cache    cache.CacheService
}

func NewResolver(repo store.Repository, registry *llm.Registry, c cache.CacheService) *Resolver {
	return &Resolver{
		repo:     repo,
		registry: registry,
		cache:    c,
	}
}

// ResolveModelForRouting turns a model identifier into a Resolution. The
// identifier is either a stored alias or the provider:model form; aliases
// take precedence. Every failure mode maps to a closed ResolutionCode so
// callers can translate outcomes without string matching.
func (r *Resolver) ResolveModelForRouting(ctx context.Context, identifier, teamID string) (*Resolution, error) {
	resolved, err := r.resolveIdentifier(ctx, identifier, teamID)
	if err != nil {
		return nil, err
	}

	provider := r.registry.Lookup(resolved.ProviderID)
	if provider == nil {
		return nil, api.NewResolutionError(api.CodeNoAdapter,
			fmt.Sprintf("no adapter registered for provider %q", resolved.ProviderID))
	}

	creds, err := r.repo.Credentials().GetDecrypted(ctx, teamID, resolved.ProviderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, api.NewResolutionError(api.CodeNoCredentials,
				fmt.Sprintf("team holds no credentials for provider %q", resolved.ProviderID))
		}
		return nil, err
	}

	return &Resolution{
		Model:       *resolved,
		Provider:    provider,
		Credentials: llm.Credentials(creds),
	}, nil
}

// resolveIdentifier maps the identifier to a ResolvedModel without touching
// adapters or credentials. Aliases resolve within the team's view: its own
// routes plus the global ones.
func (r *Resolver) resolveIdentifier(ctx context.Context, identifier, teamID string) (*ResolvedModel, error) {
	if route, ok := r.lookupAlias(ctx, identifier, teamID); ok {
		return &ResolvedModel{
			ProviderID:      route.ProviderID,
			ProviderModelID: route.ProviderModelID,
			UnifiedID:       route.ProviderID + ":" + route.ProviderModelID,
			ContextLength:   route.ContextWindow,
		}, nil
	}

	providerID, modelID, ok := llm.ParseUnifiedID(identifier)
	if !ok {
		return nil, api.NewResolutionError(api.CodeModelNotFound,
			fmt.Sprintf("model %q matches no alias and is not a provider:model identifier", identifier))
	}

	return &ResolvedModel{
		ProviderID:      providerID,
		ProviderModelID: modelID,
		UnifiedID:       identifier,
	}, nil
}

// lookupAlias checks the cache before the store. Cache failures degrade to
// store reads; a missing alias is a routing decision, not an error.
func (r *Resolver) lookupAlias(ctx context.Context, alias, teamID string) (*model.ModelRoute, bool) {
	// the cache key carries the team so one team's routes never leak
	// into another's resolutions
	cacheKey := "route:" + teamID + ":" + alias

	var cached model.ModelRoute
	if r.cache != nil {
		if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, true
		}
	}

	route, err := r.repo.Models().GetByAlias(ctx, alias, teamID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("alias lookup failed", zap.String("alias", alias), zap.Error(err))
		}
		return nil, false
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey, route, aliasCacheTTL); err != nil {
			logger.Debug("route cache write failed", zap.String("alias", alias), zap.Error(err))
		}
	}
	return route, true
}
