package api

// Unified finish reasons. Every adapter maps its provider's native stop
// values into this closed set; anything unmappable becomes nil.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

const (
	ObjectChatCompletion = "chat.completion"
	ObjectChatChunk      = "chat.completion.chunk"
)

// ChatResponse is the OpenAI-compatible envelope used for both full
// completions (object "chat.completion") and streaming chunks
// (object "chat.completion.chunk").
type ChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   *ResponseUsage `json:"usage,omitempty"`

	Error *ErrorResponse `json:"error,omitempty"`
}

type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"` // For non-streaming
	Delta        *Delta       `json:"delta,omitempty"`   // For streaming
	FinishReason *string      `json:"finish_reason"`
}

// Delta is the incremental message fragment carried by a streaming chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type ResponseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ErrorResponse struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// StreamResult is one element of a streaming response channel: either a
// normalized chunk or a terminal error.
type StreamResult struct {
	Response *ChatResponse
	Err      error
}

// Model is one entry of the unified model catalog.
type Model struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	Created       int64  `json:"created"`
	OwnedBy       string `json:"owned_by"`
	Provider      string `json:"provider,omitempty"`
	Name          string `json:"name,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
}

// ModelList is the OpenAI-compatible /v1/models response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// FinishPtr is a convenience for building finish_reason values.
func FinishPtr(reason string) *string {
	return &reason
}
