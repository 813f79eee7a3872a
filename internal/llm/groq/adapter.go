// Package groq routes chat completions to Groq's OpenAI-compatible API.
package groq

import (
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/openai"
)

func init() {
	llm.Register("groq", NewAdapter)
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	return openai.NewCompatible("groq", cfg.BaseURL), nil
}
