// Package azure implements the adapter for Azure OpenAI deployments. The
// body format is OpenAI's, but the endpoint is built from the resource name
// and deployment id, the api-version travels as a query parameter, and auth
// uses the api-key header instead of Authorization.
package azure

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/openai"
	"github.com/modelgate/gateway/internal/llm/sse"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

const defaultAPIVersion = "2024-02-15-preview"

func init() {
	llm.Register("azure", NewAdapter)
}

type Adapter struct {
	compat *openai.Adapter
	client *http.Client
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	return &Adapter{
		compat: openai.NewCompatible("azure", ""),
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "azure" }

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	return a.compat.TransformRequest(req)
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	return a.compat.TransformResponse(raw, unifiedModel)
}

func apiVersion(creds llm.Credentials) string {
	if v := creds.APIVersion(); v != "" {
		return v
	}
	return defaultAPIVersion
}

// completionsURL builds the deployment-scoped chat completions endpoint:
// https://{resource_name}.openai.azure.com/openai/deployments/{deployment_id}/chat/completions?api-version=...
func (a *Adapter) completionsURL(creds llm.Credentials, model string) (string, error) {
	resource := creds.ResourceName()
	if resource == "" {
		return "", llm.MissingField("azure", "resource_name")
	}
	deployment := creds.DeploymentID()
	if deployment == "" {
		deployment = model
	}
	return fmt.Sprintf(
		"https://%s.openai.azure.com/openai/deployments/%s/chat/completions?api-version=%s",
		resource, deployment, apiVersion(creds),
	), nil
}

func headers(creds llm.Credentials) map[string]string {
	return map[string]string{
		"api-key": creds.APIKey(),
	}
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (*api.ChatResponse, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField("azure", "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}
	payload["stream"] = false

	url, err := a.completionsURL(creds, llm.StripModelPrefix(req.Model))
	if err != nil {
		return nil, err
	}

	var raw llm.Payload
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, headers(creds), payload, &raw); err != nil {
		return nil, err
	}

	return a.TransformResponse(raw, req.Model)
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField("azure", "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}
	payload["stream"] = true

	url, err := a.completionsURL(creds, llm.StripModelPrefix(req.Model))
	if err != nil {
		return nil, err
	}

	hdrs := headers(creds)
	unifiedModel := req.Model

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, "POST", url, hdrs, payload, func(line string) error {
			if !strings.HasPrefix(line, sse.DataPrefix) {
				return nil
			}
			data := strings.TrimPrefix(line, sse.DataPrefix)
			if data == sse.Done {
				return nil
			}

			chunk, ok := sse.NormalizeOpenAIChunk([]byte(data), unifiedModel)
			if !ok {
				return nil
			}

			select {
			case ch <- api.StreamResult{Response: chunk}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			// the consumer may already be gone; never block on the terminal send
			select {
			case ch <- api.StreamResult{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// deploymentList mirrors the Azure OpenAI deployments response.
type deploymentList struct {
	Data []struct {
		ID    string `json:"id"`
		Model string `json:"model"`
	} `json:"data"`
}

func (a *Adapter) Models(ctx context.Context, creds llm.Credentials) ([]api.Model, error) {
	resource := creds.ResourceName()
	if resource == "" {
		return nil, llm.MissingField("azure", "resource_name")
	}

	url := fmt.Sprintf(
		"https://%s.openai.azure.com/openai/deployments?api-version=%s",
		resource, apiVersion(creds),
	)

	var list deploymentList
	if err := httpclient.SendRequest(ctx, a.client, "GET", url, headers(creds), nil, &list); err != nil {
		return nil, err
	}

	models := make([]api.Model, 0, len(list.Data))
	for _, d := range list.Data {
		models = append(models, api.Model{
			ID:       "azure:" + d.ID,
			Object:   "model",
			Created:  time.Now().Unix(),
			OwnedBy:  "azure",
			Provider: "azure",
			Name:     d.Model,
		})
	}
	return models, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, creds llm.Credentials) bool {
	if _, err := a.Models(ctx, creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", "azure"), zap.Error(err))
		return false
	}
	return true
}
