// Package custom implements the data-driven adapter for tenant-defined
// OpenAI-compatible providers. Endpoint paths and the auth header are
// configured per provider instead of hardcoded; the wire format, transforms
// and streaming are the OpenAI family's.
package custom

import (
	"context"
	"strings"

	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/openai"
	"github.com/modelgate/gateway/internal/llm/sse"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

const apiKeyPlaceholder = "${API_KEY}"

// Settings is the per-provider endpoint and auth configuration. Zero values
// fall back to the OpenAI conventions.
type Settings struct {
	BaseURL             string
	AuthHeaderName      string
	AuthValueTemplate   string
	APIVersion          string
	ModelsPath          string
	ChatCompletionsPath string
}

func (s *Settings) applyDefaults() {
	if s.AuthHeaderName == "" {
		s.AuthHeaderName = "Authorization"
	}
	if s.AuthValueTemplate == "" {
		s.AuthValueTemplate = "Bearer " + apiKeyPlaceholder
	}
	if s.ModelsPath == "" {
		s.ModelsPath = "/v1/models"
	}
	if s.ChatCompletionsPath == "" {
		s.ChatCompletionsPath = "/v1/chat/completions"
	}
}

// SettingsFromConfig reads adapter settings out of a stored provider record.
func SettingsFromConfig(cfg llm.ProviderConfig) Settings {
	return Settings{
		BaseURL:             cfg.BaseURL,
		AuthHeaderName:      cfg.Config["auth_header_name"],
		AuthValueTemplate:   cfg.Config["auth_value_template"],
		APIVersion:          cfg.Config["api_version"],
		ModelsPath:          cfg.Config["models_path"],
		ChatCompletionsPath: cfg.Config["chat_completions_path"],
	}
}

// BuildAuthHeaderValue substitutes the API key into the value template. The
// placeholder is replaced exactly once; a template without the placeholder
// is passed through verbatim.
func BuildAuthHeaderValue(template, apiKey string) string {
	return strings.Replace(template, apiKeyPlaceholder, apiKey, 1)
}

type Adapter struct {
	name     string
	settings Settings
	compat   *openai.Adapter
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		return nil, llm.MissingField(cfg.ID, "base_url")
	}
	settings := SettingsFromConfig(cfg)
	settings.applyDefaults()

	name := cfg.ID
	if name == "" {
		name = "custom"
	}
	return &Adapter{
		name:     name,
		settings: settings,
		// the compat adapter contributes transforms and the shared client
		compat: openai.NewCompatible(name, cfg.BaseURL),
	}, nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	return a.compat.TransformRequest(req)
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	return a.compat.TransformResponse(raw, unifiedModel)
}

// endpoint joins the configured base URL and path as-is. Slashes are not
// normalized: a trailing slash on the base URL or a missing leading slash on
// the path surfaces in the final URL, which makes misconfiguration visible
// instead of silently papered over.
func (a *Adapter) endpoint(path string) string {
	url := a.settings.BaseURL + path
	if a.settings.APIVersion != "" {
		url += "?api-version=" + a.settings.APIVersion
	}
	return url
}

// BuildChatCompletionsEndpoint returns the fully assembled completions URL.
func (a *Adapter) BuildChatCompletionsEndpoint() string {
	return a.endpoint(a.settings.ChatCompletionsPath)
}

// BuildModelsEndpoint returns the fully assembled model listing URL.
func (a *Adapter) BuildModelsEndpoint() string {
	return a.endpoint(a.settings.ModelsPath)
}

func (a *Adapter) headers(creds llm.Credentials) map[string]string {
	return map[string]string{
		a.settings.AuthHeaderName: BuildAuthHeaderValue(a.settings.AuthValueTemplate, creds.APIKey()),
	}
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (*api.ChatResponse, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField(a.name, "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}
	payload["stream"] = false

	var raw llm.Payload
	if err := httpclient.SendRequest(ctx, a.compat.Client(), "POST", a.BuildChatCompletionsEndpoint(), a.headers(creds), payload, &raw); err != nil {
		return nil, err
	}

	return a.TransformResponse(raw, req.Model)
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField(a.name, "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}
	payload["stream"] = true

	url := a.BuildChatCompletionsEndpoint()
	headers := a.headers(creds)
	unifiedModel := req.Model

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.compat.Client(), "POST", url, headers, payload, func(line string) error {
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

// customModelList matches the OpenAI /models response, which compatible
// providers copy.
type customModelList struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func (a *Adapter) Models(ctx context.Context, creds llm.Credentials) ([]api.Model, error) {
	var list customModelList
	if err := httpclient.SendRequest(ctx, a.compat.Client(), "GET", a.BuildModelsEndpoint(), a.headers(creds), nil, &list); err != nil {
		return nil, err
	}

	models := make([]api.Model, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, api.Model{
			ID:       a.name + ":" + m.ID,
			Object:   "model",
			Created:  m.Created,
			OwnedBy:  m.OwnedBy,
			Provider: a.name,
		})
	}
	return models, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, creds llm.Credentials) bool {
	if _, err := a.Models(ctx, creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", a.name), zap.Error(err))
		return false
	}
	return true
}
