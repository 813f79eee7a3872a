// Package gemini implements the adapter for the Google Generative Language
// API. Auth rides the query string (?key=) and Gemini has no system role, so
// system messages are folded into the conversation as user turns.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

func init() {
	llm.Register("gemini", NewAdapter)
}

type Adapter struct {
	baseURL string
	client  *http.Client
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return "gemini" }

// TransformContents maps unified messages into Gemini contents. Exported for
// reuse by the Vertex adapter, which shares Gemini's schema.
func TransformContents(messages []api.ChatMessage) []map[string]any {
	contents := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == string(api.Assistant) {
			role = "model"
		}
		// system messages become user turns; Gemini has no system role
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": m.Content}},
		})
	}
	return contents
}

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	p := llm.Payload{
		"contents": TransformContents(req.Messages),
	}

	generation := map[string]any{}
	if req.Temperature != nil {
		generation["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		generation["topP"] = *req.TopP
	}
	if req.MaxTokens != nil {
		generation["maxOutputTokens"] = *req.MaxTokens
	}
	if req.Stop != nil && len(req.Stop.Val) > 0 {
		generation["stopSequences"] = req.Stop.Val
	}
	if len(generation) > 0 {
		p["generationConfig"] = generation
	}

	return p, nil
}

// generateResponse mirrors the Gemini generateContent response.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	var resp generateResponse
	if err := raw.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini response contained no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	out := &api.ChatResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  api.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   unifiedModel,
		Choices: []api.Choice{{
			Index: 0,
			Message: &api.ChatMessage{
				Role:    "assistant",
				Content: text.String(),
			},
			FinishReason: MapFinishReason(resp.Candidates[0].FinishReason),
		}},
	}
	if resp.UsageMetadata != nil {
		out.Usage = &api.ResponseUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

// MapFinishReason maps Gemini finish reasons: STOP becomes stop, everything
// else becomes length. The everything-else rule conflates safety blocks with
// true truncation; it is the established behavior and is kept as is.
func MapFinishReason(reason string) *string {
	if reason == "STOP" {
		return api.FinishPtr(api.FinishStop)
	}
	return api.FinishPtr(api.FinishLength)
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (*api.ChatResponse, error) {
	if creds.APIKey() == "" {
		return nil, llm.MissingField("gemini", "api_key")
	}

	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		a.baseURL, llm.StripModelPrefix(req.Model), creds.APIKey())

	var raw llm.Payload
	if err := httpclient.SendRequest(ctx, a.client, "POST", url, nil, payload, &raw); err != nil {
		return nil, err
	}

	return a.TransformResponse(raw, req.Model)
}

// Stream is not available for Gemini in this version.
func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	return nil, llm.StreamingNotSupportedError("gemini")
}

// geminiModelList mirrors the Gemini /models response.
type geminiModelList struct {
	Models []struct {
		Name             string `json:"name"`
		DisplayName      string `json:"displayName"`
		InputTokenLimit  int    `json:"inputTokenLimit"`
		OutputTokenLimit int    `json:"outputTokenLimit"`
	} `json:"models"`
}

func (a *Adapter) Models(ctx context.Context, creds llm.Credentials) ([]api.Model, error) {
	url := fmt.Sprintf("%s/models?key=%s", a.baseURL, creds.APIKey())

	var list geminiModelList
	if err := httpclient.SendRequest(ctx, a.client, "GET", url, nil, nil, &list); err != nil {
		return nil, err
	}

	models := make([]api.Model, 0, len(list.Models))
	for _, m := range list.Models {
		id := strings.TrimPrefix(m.Name, "models/")
		models = append(models, api.Model{
			ID:            "gemini:" + id,
			Object:        "model",
			Created:       time.Now().Unix(),
			OwnedBy:       "google",
			Provider:      "gemini",
			Name:          m.DisplayName,
			ContextLength: m.InputTokenLimit,
		})
	}
	return models, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, creds llm.Credentials) bool {
	if _, err := a.Models(ctx, creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", "gemini"), zap.Error(err))
		return false
	}
	return true
}
