package sse

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/gateway/pkg/api"
)

// anthropicEvent mirrors the typed event stream of the Anthropic Messages API.
type anthropicEvent struct {
	Type    string `json:"type"`
	Message *struct {
		ID string `json:"id"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta,omitempty"`
	Index int `json:"index,omitempty"`
}

// AnthropicNormalizer converts Anthropic stream events into unified chunks.
// It is stateful: the message id from message_start is reused on every chunk,
// falling back to a generated id when the event was never seen.
type AnthropicNormalizer struct {
	model string
	id    string
}

func NewAnthropicNormalizer(unifiedModel string) *AnthropicNormalizer {
	return &AnthropicNormalizer{model: unifiedModel}
}

// Normalize maps one event payload to zero or one unified chunk.
//
//	message_start       → no chunk, message id captured
//	content_block_start → opening chunk: delta.role="assistant", empty content
//	content_block_delta → content chunk carrying the text delta
//	message_delta       → terminal chunk with the mapped finish reason
//
// Every other event type, and any payload that does not parse, yields nothing.
func (n *AnthropicNormalizer) Normalize(data []byte) (*api.ChatResponse, bool) {
	var event anthropicEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, false
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			n.id = event.Message.ID
		}
		return nil, false

	case "content_block_start":
		return n.chunk(api.Choice{
			Index: 0,
			Delta: &api.Delta{Role: "assistant"},
		}), true

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Type != "text_delta" {
			return nil, false
		}
		return n.chunk(api.Choice{
			Index: 0,
			Delta: &api.Delta{Content: event.Delta.Text},
		}), true

	case "message_delta":
		if event.Delta == nil || event.Delta.StopReason == "" {
			return nil, false
		}
		return n.chunk(api.Choice{
			Index:        0,
			Delta:        &api.Delta{},
			FinishReason: MapAnthropicStop(event.Delta.StopReason),
		}), true
	}

	return nil, false
}

func (n *AnthropicNormalizer) chunk(choice api.Choice) *api.ChatResponse {
	if n.id == "" {
		n.id = "chatcmpl-" + uuid.NewString()
	}
	return &api.ChatResponse{
		ID:      n.id,
		Object:  api.ObjectChatChunk,
		Created: time.Now().Unix(),
		Model:   n.model,
		Choices: []api.Choice{choice},
	}
}

// MapAnthropicStop maps Anthropic stop reasons into the unified set:
// end_turn → stop, max_tokens → length, anything else → nil.
func MapAnthropicStop(reason string) *string {
	switch reason {
	case "end_turn":
		return api.FinishPtr(api.FinishStop)
	case "max_tokens":
		return api.FinishPtr(api.FinishLength)
	}
	return nil
}
