// Package mistral routes chat completions to Mistral's OpenAI-compatible
// API. Mistral rejects frequency_penalty and presence_penalty, so the
// adapter omits them rather than zero-filling.
package mistral

import (
	"github.com/modelgate/gateway/internal/llm"
	"github.com/modelgate/gateway/internal/llm/openai"
)

func init() {
	llm.Register("mistral", NewAdapter)
}

func NewAdapter(cfg llm.ProviderConfig) (llm.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mistral.ai/v1"
	}
	return openai.NewCompatible("mistral", cfg.BaseURL, openai.WithoutPenalties()), nil
}
