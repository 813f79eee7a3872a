package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgate/gateway/pkg/api"
)

func TestNormalizeOpenAIChunk_ContentDelta(t *testing.T) {
	data := []byte(`{"id":"chatcmpl-abc","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o-2024-08-06","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}`)

	chunk, ok := NormalizeOpenAIChunk(data, "openai:gpt-4o")
	require.True(t, ok)

	assert.Equal(t, "chatcmpl-abc", chunk.ID)
	assert.Equal(t, api.ObjectChatChunk, chunk.Object)
	assert.Equal(t, int64(1700000000), chunk.Created)
	// the upstream model name is replaced with the unified id
	assert.Equal(t, "openai:gpt-4o", chunk.Model)
	require.Len(t, chunk.Choices, 1)
	assert.Equal(t, "Hello", chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Choices[0].FinishReason)
}

func TestNormalizeOpenAIChunk_FinishReason(t *testing.T) {
	data := []byte(`{"id":"chatcmpl-abc","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)

	chunk, ok := NormalizeOpenAIChunk(data, "openai:gpt-4o")
	require.True(t, ok)
	require.NotNil(t, chunk.Choices[0].FinishReason)
	assert.Equal(t, api.FinishStop, *chunk.Choices[0].FinishReason)
}

func TestNormalizeOpenAIChunk_NilDeltaBecomesEmpty(t *testing.T) {
	data := []byte(`{"id":"x","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop"}]}`)

	chunk, ok := NormalizeOpenAIChunk(data, "u")
	require.True(t, ok)
	require.NotNil(t, chunk.Choices[0].Delta)
	assert.True(t, IsValidChunk(chunk))
}

func TestNormalizeOpenAIChunk_Malformed(t *testing.T) {
	_, ok := NormalizeOpenAIChunk([]byte("not json"), "u")
	assert.False(t, ok)

	_, ok = NormalizeOpenAIChunk([]byte(`{"id":"x","choices":[]}`), "u")
	assert.False(t, ok)
}

func TestIsValidChunk(t *testing.T) {
	assert.False(t, IsValidChunk(nil))
	assert.False(t, IsValidChunk(&api.ChatResponse{Object: api.ObjectChatCompletion}))
	assert.False(t, IsValidChunk(&api.ChatResponse{Object: api.ObjectChatChunk}))
	assert.True(t, IsValidChunk(&api.ChatResponse{
		Object:  api.ObjectChatChunk,
		Choices: []api.Choice{{Delta: &api.Delta{}}},
	}))
}
