// Package gateway holds the business logic between the HTTP surface and the
// provider adapters: model resolution, call execution, stream interception
// and request accounting.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/gateway/internal/analytics"
	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/router"
	"github.com/modelgate/gateway/internal/store"
	"github.com/modelgate/gateway/internal/store/model"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

// Service defines the business logic for proxying chat requests.
type Service interface {
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	StreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)
	ListModels(ctx context.Context) ([]api.Model, error)
	ValidateProvider(ctx context.Context, teamID, providerID string) (bool, error)
}

type service struct {
	logger   *zap.Logger
	repo     store.Repository
	resolver *router.Resolver
	registry *llm.Registry
	ingestor analytics.Ingestor
}

func NewService(logger *zap.Logger, repo store.Repository, resolver *router.Resolver, registry *llm.Registry, ingestor analytics.Ingestor) Service {
	return &service{
		logger:   logger,
		repo:     repo,
		resolver: resolver,
		registry: registry,
		ingestor: ingestor,
	}
}

// identity is the caller derived from the auth middleware.
type identity struct {
	teamID   string
	apiKeyID string
}

func identityFromContext(ctx context.Context) identity {
	if key, ok := ctx.Value(store.ContextKeyAPIKey).(*model.APIKey); ok {
		return identity{teamID: key.TeamID, apiKeyID: key.ID}
	}
	return identity{teamID: "system", apiKeyID: "system"}
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	caller := identityFromContext(ctx)

	res, err := s.resolver.ResolveModelForRouting(ctx, req.Model, caller.teamID)
	if err != nil {
		return nil, err
	}

	reqClone := *req
	reqClone.Model = res.Model.UnifiedID

	start := time.Now()
	resp, err := res.Provider.Chat(ctx, &reqClone, res.Credentials)
	latency := time.Since(start)

	if err != nil {
		s.logChat(caller, res, req.Model, nil, latency, statusOf(err))
		return nil, fmt.Errorf("provider execution failed: %w", err)
	}

	s.logChat(caller, res, req.Model, resp, latency, 200)
	return resp, nil
}

func (s *service) StreamChat(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error) {
	caller := identityFromContext(ctx)

	res, err := s.resolver.ResolveModelForRouting(ctx, req.Model, caller.teamID)
	if err != nil {
		s.logger.Warn("Model resolution failed for stream",
			zap.String("model", req.Model), zap.Error(err))
		return nil, err
	}

	reqClone := *req
	reqClone.Model = res.Model.UnifiedID

	streamChan, err := res.Provider.Stream(ctx, &reqClone, res.Credentials)
	if err != nil {
		return nil, err
	}

	// Intercept the stream for accounting
	outChan := make(chan api.StreamResult)

	go func() {
		defer close(outChan)

		start := time.Now()
		var ttft *time.Duration
		var inputTokens, outputTokens int
		var finishReason string
		var lastID string
		statusCode := 200

		for result := range streamChan {
			// Record TTFT on first successful chunk
			if ttft == nil && result.Response != nil {
				dur := time.Since(start)
				ttft = &dur
			}

			if result.Response != nil {
				lastID = result.Response.ID

				// Some providers send usage only in the last chunk
				if result.Response.Usage != nil {
					inputTokens = result.Response.Usage.PromptTokens
					outputTokens = result.Response.Usage.CompletionTokens
				}

				if len(result.Response.Choices) > 0 {
					if fr := result.Response.Choices[0].FinishReason; fr != nil {
						finishReason = *fr
					}
				}
			}

			if result.Err != nil {
				statusCode = statusOf(result.Err)
			}

			select {
			case outChan <- result:
			case <-ctx.Done():
				// client went away mid-stream; keep draining so the
				// request still gets accounted
				statusCode = 499
			}
		}

		latency := time.Since(start)
		var ttftMS sql.NullInt64
		if ttft != nil {
			ttftMS = sql.NullInt64{Int64: ttft.Milliseconds(), Valid: true}
		}

		log := &model.RequestLog{
			ID:           lastID, // empty when the stream failed before the first chunk
			TeamID:       caller.teamID,
			APIKeyID:     caller.apiKeyID,
			ProviderID:   res.Model.ProviderID,
			ModelID:      req.Model,
			UpstreamID:   lastID,
			FinishReason: finishReason,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			LatencyMS:    latency.Milliseconds(),
			TTFTMS:       ttftMS,
			StatusCode:   statusCode,
			IsStreamed:   true,
			CreatedAt:    time.Now(),
		}

		if log.ID == "" {
			log.ID = "stream-" + uuid.NewString()
			if statusCode == 200 {
				log.StatusCode = 500
			}
		}

		s.ingestor.Log(log)
	}()

	return outChan, nil
}

// ListModels returns the catalog of routes visible to the caller's team in
// unified form.
func (s *service) ListModels(ctx context.Context) ([]api.Model, error) {
	caller := identityFromContext(ctx)
	routes, err := s.repo.Models().List(ctx, caller.teamID)
	if err != nil {
		return nil, err
	}

	models := make([]api.Model, 0, len(routes))
	for _, route := range routes {
		models = append(models, api.Model{
			ID:            route.Alias,
			Object:        "model",
			Created:       route.CreatedAt.Unix(),
			OwnedBy:       route.ProviderID,
			Provider:      route.ProviderID,
			Name:          route.ProviderID + ":" + route.ProviderModelID,
			ContextLength: route.ContextWindow,
		})
	}
	return models, nil
}

// ValidateProvider probes a provider with the team's stored credentials.
func (s *service) ValidateProvider(ctx context.Context, teamID, providerID string) (bool, error) {
	provider := s.registry.Lookup(providerID)
	if provider == nil {
		return false, api.NewResolutionError(api.CodeNoAdapter,
			fmt.Sprintf("no adapter registered for provider %q", providerID))
	}

	creds, err := s.repo.Credentials().GetDecrypted(ctx, teamID, providerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, api.NewResolutionError(api.CodeNoCredentials,
				fmt.Sprintf("team holds no credentials for provider %q", providerID))
		}
		return false, err
	}

	return provider.ValidateCredentials(ctx, llm.Credentials(creds)), nil
}

func (s *service) logChat(caller identity, res *router.Resolution, modelID string, resp *api.ChatResponse, latency time.Duration, status int) {
	log := &model.RequestLog{
		TeamID:     caller.teamID,
		APIKeyID:   caller.apiKeyID,
		ProviderID: res.Model.ProviderID,
		ModelID:    modelID,
		StatusCode: status,
		LatencyMS:  latency.Milliseconds(),
		CreatedAt:  time.Now(),
	}

	if resp != nil {
		log.ID = resp.ID
		log.UpstreamID = resp.ID
		if len(resp.Choices) > 0 && resp.Choices[0].FinishReason != nil {
			log.FinishReason = *resp.Choices[0].FinishReason
		}
		if resp.Usage != nil {
			log.InputTokens = resp.Usage.PromptTokens
			log.OutputTokens = resp.Usage.CompletionTokens
		}
	}
	if log.ID == "" {
		log.ID = "req-" + uuid.NewString()
	}

	s.ingestor.Log(log)
}

// statusOf extracts the upstream HTTP status from a provider error, falling
// back to 502 for transport failures.
func statusOf(err error) int {
	var upstream *httpclient.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode
	}
	return 502
}
