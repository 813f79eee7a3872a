package sse

import (
	"encoding/json"

	"github.com/modelgate/gateway/pkg/api"
)

// openaiChunk mirrors the wire shape of an OpenAI-family streaming chunk.
type openaiChunk struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int        `json:"index"`
		Delta        *api.Delta `json:"delta"`
		FinishReason *string    `json:"finish_reason"`
	} `json:"choices"`
}

// NormalizeOpenAIChunk maps one OpenAI-family SSE data payload to a unified
// chunk. The mapping is 1:1 — id, created, index, delta and finish_reason are
// copied verbatim and only the model field is replaced with the unified id.
// Returns false for payloads that do not parse; callers skip those and keep
// the stream alive.
func NormalizeOpenAIChunk(data []byte, unifiedModel string) (*api.ChatResponse, bool) {
	var chunk openaiChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, false
	}
	if len(chunk.Choices) == 0 {
		return nil, false
	}

	delta := chunk.Choices[0].Delta
	if delta == nil {
		delta = &api.Delta{}
	}

	return &api.ChatResponse{
		ID:      chunk.ID,
		Object:  api.ObjectChatChunk,
		Created: chunk.Created,
		Model:   unifiedModel,
		Choices: []api.Choice{{
			Index:        chunk.Choices[0].Index,
			Delta:        delta,
			FinishReason: chunk.Choices[0].FinishReason,
		}},
	}, true
}

// IsValidChunk reports whether a normalized chunk satisfies the unified
// streaming envelope: chunk object type, non-empty choices and a delta object.
func IsValidChunk(c *api.ChatResponse) bool {
	if c == nil || c.Object != api.ObjectChatChunk {
		return false
	}
	if len(c.Choices) == 0 {
		return false
	}
	return c.Choices[0].Delta != nil
}
