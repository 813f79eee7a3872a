package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/pkg/api"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	p, err := NewAdapter(llm.ProviderConfig{BaseURL: baseURL})
	require.NoError(t, err)
	return p.(*Adapter)
}

func TestTransformRequest_SystemExtraction(t *testing.T) {
	a := newTestAdapter(t, "")

	req := &api.ChatRequest{
		Model: "anthropic:claude-3-5-sonnet",
		Messages: []api.ChatMessage{
			{Role: "system", Content: "Be terse."},
			{Role: "user", Content: "hi"},
			{Role: "system", Content: "ignored"},
			{Role: "assistant", Content: "hello"},
		},
	}

	p, err := a.TransformRequest(req)
	require.NoError(t, err)

	assert.Equal(t, "claude-3-5-sonnet", p["model"])
	// only the first system message survives, as a top-level field
	assert.Equal(t, "Be terse.", p["system"])

	messages := p["messages"].([]map[string]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0]["role"])
	assert.Equal(t, "assistant", messages[1]["role"])
}

func TestTransformRequest_MaxTokensDefault(t *testing.T) {
	a := newTestAdapter(t, "")

	p, err := a.TransformRequest(&api.ChatRequest{
		Model:    "anthropic:claude-3-5-sonnet",
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, p["max_tokens"])

	limit := 100
	p, err = a.TransformRequest(&api.ChatRequest{
		Model:     "anthropic:claude-3-5-sonnet",
		Messages:  []api.ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, p["max_tokens"])
}

func TestTransformRequest_StopSequences(t *testing.T) {
	a := newTestAdapter(t, "")

	p, err := a.TransformRequest(&api.ChatRequest{
		Model:    "anthropic:claude-3-5-sonnet",
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
		Stop:     &api.Stop{Val: []string{"END"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"END"}, p["stop_sequences"])
}

func TestTransformResponse(t *testing.T) {
	a := newTestAdapter(t, "")

	raw := llm.Payload{
		"id":   "msg_123",
		"role": "assistant",
		"content": []any{
			map[string]any{"type": "text", "text": "Hello, "},
			map[string]any{"type": "text", "text": "world."},
		},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 4},
	}

	resp, err := a.TransformResponse(raw, "anthropic:claude-3-5-sonnet")
	require.NoError(t, err)

	assert.Equal(t, "msg_123", resp.ID)
	assert.Equal(t, "anthropic:claude-3-5-sonnet", resp.Model)
	assert.Equal(t, "Hello, world.", resp.Choices[0].Message.Content)
	require.NotNil(t, resp.Choices[0].FinishReason)
	assert.Equal(t, api.FinishStop, *resp.Choices[0].FinishReason)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
}

func TestTransformResponse_UnmappedStopReason(t *testing.T) {
	a := newTestAdapter(t, "")

	resp, err := a.TransformResponse(llm.Payload{
		"id":          "msg_1",
		"content":     []any{map[string]any{"type": "text", "text": "x"}},
		"stop_reason": "tool_use",
	}, "anthropic:claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Nil(t, resp.Choices[0].FinishReason)
}

func TestChat_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-5-sonnet", body["model"])

		fmt.Fprint(w, `{"id":"msg_1","role":"assistant","content":[{"type":"text","text":"pong"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	resp, err := a.Chat(context.Background(), &api.ChatRequest{
		Model:    "anthropic:claude-3-5-sonnet",
		Messages: []api.ChatMessage{{Role: "user", Content: "ping"}},
	}, llm.Credentials{"api_key": "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Choices[0].Message.Content)
}

func TestChat_MissingAPIKey(t *testing.T) {
	a := newTestAdapter(t, "")

	_, err := a.Chat(context.Background(), &api.ChatRequest{
		Model:    "anthropic:claude-3-5-sonnet",
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
	}, llm.Credentials{})

	var cfgErr *llm.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestStream_EventSequence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_9\"}}\n\n")
		fmt.Fprint(w, "event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"max_tokens\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	ch, err := a.Stream(context.Background(), &api.ChatRequest{
		Model:    "anthropic:claude-3-5-sonnet",
		Messages: []api.ChatMessage{{Role: "user", Content: "hi"}},
		Stream:   true,
	}, llm.Credentials{"api_key": "sk-ant-test"})
	require.NoError(t, err)

	var chunks []*api.ChatResponse
	for result := range ch {
		require.NoError(t, result.Err)
		chunks = append(chunks, result.Response)
	}

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, "msg_9", c.ID)
		assert.Equal(t, "anthropic:claude-3-5-sonnet", c.Model)
	}
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "Hi", chunks[1].Choices[0].Delta.Content)
	require.NotNil(t, chunks[2].Choices[0].FinishReason)
	assert.Equal(t, api.FinishLength, *chunks[2].Choices[0].FinishReason)
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"id":"claude-3-5-sonnet-20241022","created_at":"2024-10-22T00:00:00Z"}]}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	models, err := a.Models(context.Background(), llm.Credentials{"api_key": "k"})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "anthropic:claude-3-5-sonnet-20241022", models[0].ID)
	assert.Equal(t, "anthropic", models[0].Provider)
}
