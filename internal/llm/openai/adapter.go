// Package openai implements the adapter for OpenAI and OpenAI-compatible
// chat completion APIs. Groq and Mistral reuse this adapter with their own
// endpoints since they speak the same wire format.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/sse"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

func init() {
	llm.Register("openai", NewAdapter)
}

// Option tweaks a compatible adapter for sibling providers.
type Option func(*Adapter)

// WithoutPenalties drops frequency_penalty and presence_penalty from
// transformed requests, for providers that reject them (Mistral).
func WithoutPenalties() Option {
	return func(a *Adapter) { a.dropPenalties = true }
}

type Adapter struct {
	name          string
	baseURL       string
	dropPenalties bool
	client        *http.Client
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return NewCompatible("openai", cfg.BaseURL), nil
}

// NewCompatible builds an adapter for any provider speaking the OpenAI chat
// completion wire format.
func NewCompatible(name, baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return a.name }

// Client exposes the shared HTTP client for adapters that compose this one
// but build their own URLs and headers.
func (a *Adapter) Client() *http.Client { return a.client }

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, map[string]any{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	p := llm.Payload{
		"model":    llm.StripModelPrefix(req.Model),
		"messages": messages,
	}

	// optional parameters are forwarded only when set
	if req.Temperature != nil {
		p["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		p["max_tokens"] = *req.MaxTokens
	}
	if req.TopP != nil {
		p["top_p"] = *req.TopP
	}
	if !a.dropPenalties {
		if req.FrequencyPenalty != nil {
			p["frequency_penalty"] = *req.FrequencyPenalty
		}
		if req.PresencePenalty != nil {
			p["presence_penalty"] = *req.PresencePenalty
		}
	}
	if req.Stop != nil && len(req.Stop.Val) > 0 {
		p["stop"] = req.Stop.Val
	}

	return p, nil
}

// completionResponse mirrors the OpenAI chat completion response shape.
type completionResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *api.ResponseUsage `json:"usage"`
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	var resp completionResponse
	if err := raw.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s response contained no choices", a.name)
	}

	choices := make([]api.Choice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choices = append(choices, api.Choice{
			Index: c.Index,
			Message: &api.ChatMessage{
				Role:    c.Message.Role,
				Content: c.Message.Content,
			},
			FinishReason: MapFinishReason(c.FinishReason),
		})
	}

	out := &api.ChatResponse{
		ID:      resp.ID,
		Object:  api.ObjectChatCompletion,
		Created: resp.Created,
		Model:   unifiedModel,
		Choices: choices,
		Usage:   resp.Usage,
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	return out, nil
}

// MapFinishReason maps OpenAI-family finish reasons into the unified set.
// Values outside {stop, length} collapse to nil.
func MapFinishReason(reason string) *string {
	switch reason {
	case "stop":
		return api.FinishPtr(api.FinishStop)
	case "length":
		return api.FinishPtr(api.FinishLength)
	}
	return nil
}

func (a *Adapter) headers(creds llm.Credentials) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + creds.APIKey(),
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

	url := a.baseURL + "/chat/completions"

	var raw llm.Payload
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, a.headers(creds), payload, &raw); err != nil {
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

	url := a.baseURL + "/chat/completions"
	headers := a.headers(creds)
	unifiedModel := req.Model

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, "POST", url, headers, payload, func(line string) error {
			if !strings.HasPrefix(line, sse.DataPrefix) {
				return nil
			}
			data := strings.TrimPrefix(line, sse.DataPrefix)
			if data == sse.Done {
				return nil
			}

			chunk, ok := sse.NormalizeOpenAIChunk([]byte(data), unifiedModel)
			if !ok {
				// malformed data lines are skipped, never fatal
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

// modelList mirrors the OpenAI /models response.
type modelList struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func (a *Adapter) Models(ctx context.Context, creds llm.Credentials) ([]api.Model, error) {
	var list modelList
	url := a.baseURL + "/models"
	if err := httpclient.SendRequest(ctx, a.client, "GET", url, a.headers(creds), nil, &list); err != nil {
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
