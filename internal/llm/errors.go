package llm

import (
	"errors"
	"fmt"
)

// ErrStreamingNotSupported is returned synchronously by adapters whose
// provider has no streaming path. Callers must treat it as an expected,
// first-class failure mode.
var ErrStreamingNotSupported = errors.New("streaming not supported")

// StreamingNotSupportedError wraps ErrStreamingNotSupported with the
// provider name.
func StreamingNotSupportedError(provider string) error {
	return fmt.Errorf("%w for provider %s", ErrStreamingNotSupported, provider)
}

// ConfigError reports a missing or invalid construction-time or credential
// field, detected before any network call.
type ConfigError struct {
	Provider string
	Field    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %s: missing required field %s", e.Provider, e.Field)
}

func MissingField(provider, field string) error {
	return &ConfigError{Provider: provider, Field: field}
}
