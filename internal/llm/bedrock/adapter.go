// Package bedrock implements the adapter for AWS Bedrock's InvokeModel API
// with Anthropic Claude models. The request body follows the Anthropic
// Messages format with the model in the URL path instead of the body and an
// anthropic_version field in the body; every call is SigV4-signed.
package bedrock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/modelgate/gateway/internal/httpclient"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/sse"
	"github.com/modelgate/gateway/internal/logger"
	"github.com/modelgate/gateway/pkg/api"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

const serviceName = "bedrock"

func init() {
	llm.Register("bedrock", NewAdapter)
}

type Adapter struct {
	client *http.Client
	signer *v4.Signer
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	return &Adapter{
		client: &http.Client{Timeout: 60 * time.Second},
		signer: v4.NewSigner(),
	}, nil
}

func (a *Adapter) Name() string { return "bedrock" }

func (a *Adapter) TransformRequest(req *api.ChatRequest) (llm.Payload, error) {
	var system string
	messages := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == string(api.System) {
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

	// the model id travels in the URL path, not the body
	p := llm.Payload{
		"anthropic_version": anthropicVersion,
		"messages":          messages,
		"max_tokens":        4096,
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

// invokeResponse mirrors the Bedrock InvokeModel response for Claude, which
// is identical to the Anthropic Messages API response.
type invokeResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Adapter) TransformResponse(raw llm.Payload, unifiedModel string) (*api.ChatResponse, error) {
	var resp invokeResponse
	if err := raw.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode bedrock response: %w", err)
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

func awsCredentials(creds llm.Credentials) (aws.Credentials, error) {
	if creds.AccessKeyID() == "" {
		return aws.Credentials{}, llm.MissingField("bedrock", "access_key_id")
	}
	if creds.SecretAccessKey() == "" {
		return aws.Credentials{}, llm.MissingField("bedrock", "secret_access_key")
	}
	return aws.Credentials{
		AccessKeyID:     creds.AccessKeyID(),
		SecretAccessKey: creds.SecretAccessKey(),
		SessionToken:    creds.SessionToken(),
	}, nil
}

// signedCall signs the request with SigV4 over host, path, service, region
// and body hash, then executes it.
func (a *Adapter) signedCall(ctx context.Context, creds llm.Credentials, method, url string, body []byte) ([]byte, error) {
	awsCreds, err := awsCredentials(creds)
	if err != nil {
		return nil, err
	}
	region := creds.Region()
	if region == "" {
		return nil, llm.MissingField("bedrock", "region")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	payloadHash := sha256.Sum256(body)
	if err := a.signer.SignHTTP(ctx, awsCreds, req, hex.EncodeToString(payloadHash[:]), serviceName, region, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to sign bedrock request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bedrock request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpclient.UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			URL:        url,
		}
	}

	return respBody, nil
}

func (a *Adapter) Chat(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (*api.ChatResponse, error) {
	payload, err := a.TransformRequest(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/model/%s/invoke",
		creds.Region(), llm.StripModelPrefix(req.Model))

	respBody, err := a.signedCall(ctx, creds, "POST", url, body)
	if err != nil {
		return nil, err
	}

	var raw llm.Payload
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode bedrock response: %w", err)
	}

	return a.TransformResponse(raw, req.Model)
}

// Stream is not available for Bedrock; InvokeModelWithResponseStream uses
// the AWS event-stream encoding this gateway does not speak.
func (a *Adapter) Stream(ctx context.Context, req *api.ChatRequest, creds llm.Credentials) (<-chan api.StreamResult, error) {
	return nil, llm.StreamingNotSupportedError("bedrock")
}

// foundationModelList mirrors the Bedrock ListFoundationModels response.
type foundationModelList struct {
	ModelSummaries []struct {
		ModelID      string `json:"modelId"`
		ModelName    string `json:"modelName"`
		ProviderName string `json:"providerName"`
	} `json:"modelSummaries"`
}

func (a *Adapter) Models(ctx context.Context, creds llm.Credentials) ([]api.Model, error) {
	url := fmt.Sprintf("https://bedrock.%s.amazonaws.com/foundation-models", creds.Region())

	respBody, err := a.signedCall(ctx, creds, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	var list foundationModelList
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("failed to decode bedrock model list: %w", err)
	}

	models := make([]api.Model, 0, len(list.ModelSummaries))
	for _, m := range list.ModelSummaries {
		models = append(models, api.Model{
			ID:       "bedrock:" + m.ModelID,
			Object:   "model",
			Created:  time.Now().Unix(),
			OwnedBy:  m.ProviderName,
			Provider: "bedrock",
			Name:     m.ModelName,
		})
	}
	return models, nil
}

func (a *Adapter) ValidateCredentials(ctx context.Context, creds llm.Credentials) bool {
	if _, err := a.Models(ctx, creds); err != nil {
		logger.Debug("credential validation failed", zap.String("provider", "bedrock"), zap.Error(err))
		return false
	}
	return true
}
