package bedrock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/pkg/api"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	p, err := NewAdapter(llm.ProviderConfig{})
	require.NoError(t, err)
	return p.(*Adapter)
}

func TestTransformRequest(t *testing.T) {
	a := newTestAdapter(t)

	req := &api.ChatRequest{
		Model: "bedrock:anthropic.claude-3-sonnet-20240229-v1:0",
		Messages: []api.ChatMessage{
			{Role: "system", Content: "Be brief."},
			{Role: "user", Content: "hi"},
		},
	}

	p, err := a.TransformRequest(req)
	require.NoError(t, err)

	assert.Equal(t, anthropicVersion, p["anthropic_version"])
	assert.Equal(t, "Be brief.", p["system"])
	assert.Equal(t, 4096, p["max_tokens"])

	// the model id belongs in the URL path, never the body
	_, hasModel := p["model"]
	assert.False(t, hasModel)

	messages := p["messages"].([]map[string]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0]["role"])
}

func TestTransformResponse(t *testing.T) {
	a := newTestAdapter(t)

	raw := llm.Payload{
		"id":          "msg_bdrk_1",
		"content":     []any{map[string]any{"type": "text", "text": "pong"}},
		"stop_reason": "max_tokens",
		"usage":       map[string]any{"input_tokens": 2, "output_tokens": 1},
	}

	resp, err := a.TransformResponse(raw, "bedrock:anthropic.claude-3-sonnet-20240229-v1:0")
	require.NoError(t, err)

	assert.Equal(t, "msg_bdrk_1", resp.ID)
	assert.Equal(t, "pong", resp.Choices[0].Message.Content)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, api.FinishLength, *resp.Choices[0].FinishReason)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestAwsCredentials(t *testing.T) {
	creds, err := awsCredentials(llm.Credentials{
		"access_key_id":     "AKIA123",
		"secret_access_key": "secret",
		"session_token":     "token",
	})
	require.NoError(t, err)
	assert.Equal(t, "AKIA123", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
}

func TestAwsCredentials_MissingFields(t *testing.T) {
	_, err := awsCredentials(llm.Credentials{"secret_access_key": "s"})
	var cfgErr *llm.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "access_key_id", cfgErr.Field)

	_, err = awsCredentials(llm.Credentials{"access_key_id": "a"})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "secret_access_key", cfgErr.Field)
}

func TestChat_MissingRegion(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.Chat(context.Background(), &api.ChatRequest{
		Model:    "bedrock:anthropic.claude-3-sonnet-20240229-v1:0",
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	}, llm.Credentials{
		"access_key_id":     "AKIA123",
		"secret_access_key": "secret",
	})

	var cfgErr *llm.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "region", cfgErr.Field)
}

func TestStream_NotSupported(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.Stream(context.Background(), &api.ChatRequest{
		Model:    "bedrock:anthropic.claude-3-sonnet-20240229-v1:0",
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	}, llm.Credentials{})

	assert.ErrorIs(t, err, llm.ErrStreamingNotSupported)
	assert.Contains(t, err.Error(), "bedrock")
}
