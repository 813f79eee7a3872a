// Package anthropic implements the adapter for the Anthropic Messages API.
package anthropic

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

const defaultVersion = "2023-06-01"

// Claude rejects requests without max_tokens, so an explicit ceiling is
// always sent.
const defaultMaxTokens = 4096

func init() {
	llm.Register("anthropic", NewAdapter)
}

type Adapter struct {
	baseURL string
	version string
	client  *http.Client
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	version := defaultVersion
	if v, ok := cfg.Config["version"]; ok {
		version = v
	}
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: version,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	var system string
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == string(api.System) {
			// Anthropic takes a single system string; only the first
			// system message is honored, the rest are discarded
			if system == "" {
				system = m.Content
			}
			continue
		}
		messages = append(messages, map[string]any{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	p := llm.Payload{
		"model":      llm.StripModelPrefix(req.Model),
		"messages":   messages,
		"max_tokens": defaultMaxTokens,
	}
	if system != "" {
		p["system"] = system
	}
	if req.MaxTokens != nil {
		p["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		p["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		p["top_p"] = *req.TopP
	}
	if req.Stop != nil && len(req.Stop.Val) > 0 {
		p["stop_sequences"] = req.Stop.Val
	}

	return p, nil
}

// messagesResponse mirrors the Anthropic Messages API response.
type messagesResponse struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	var resp messagesResponse
	if err := raw.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return &api.ChatResponse{
		ID:      resp.ID,
		Object:  api.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   unifiedModel,
		Choices: []api.Choice{{
			Index: 0,
			Message: &api.ChatMessage{
				Role:    "assistant",
				Content: text.String(),
			},
			FinishReason: sse.MapAnthropicStop(resp.StopReason),
		}},
		Usage: &api.ResponseUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (a *Adapter) headers(creds llm.Credentials) map[string]string {
	return map[string]string{
		"x-api-key":         creds.APIKey(),
		"anthropic-version": a.version,
	}
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (*api.ChatResponse, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField("anthropic", "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}
	payload["stream"] = false

	var raw llm.Payload
	url := a.baseURL + "/messages"
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, a.headers(creds), payload, &raw); err != nil {
		return nil, err
	}

	return a.TransformResponse(raw, req.Model)
}

func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField("anthropic", "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}
	payload["stream"] = true

	url := a.baseURL + "/messages"
	headers := a.headers(creds)
	normalizer := sse.NewAnthropicNormalizer(req.Model)

	ch := make(chan api.StreamResult)
	go func() {
		defer close(ch)

		err := httpclient.StreamRequest(ctx, a.client, "POST", url, headers, payload, func(line string) error {
			if !strings.HasPrefix(line, sse.DataPrefix) {
				return nil
			}
			data := strings.TrimPrefix(line, sse.DataPrefix)

			chunk, ok := normalizer.Normalize([]byte(data))
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

// modelList mirrors the Anthropic /models response.
type modelList struct {
	Data []struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
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
		created, _ := time.Parse(time.RFC3339, m.CreatedAt)
		models = append(models, api.Model{
			ID:       "anthropic:" + m.ID,
			Object:   "model",
			Created:  created.Unix(),
			OwnedBy:  "anthropic",
			Provider: "anthropic",
		})
	}
	return models, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, creds llm.Credentials) bool {
	if _, err := a.Models(ctx, creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", "anthropic"), zap.Error(err))
		return false
	}
	return true
}
