// Package llm defines the provider adapter contract: the polymorphic
// interface every upstream provider implements, the transient credential bag,
// and the registry that maps provider string ids to adapter instances.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/modelgate/gateway/pkg/api"
)

// Payload is a provider-shaped request or response body. Each adapter owns
// its shape; there are no cross-provider invariants.
type Payload map[string]any

// Decode unpacks a payload into a provider-typed struct via a JSON round
// trip, keeping the stored form genuinely provider-opaque.
func (p Payload) Decode(dest any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Credentials is the decrypted per-team credential bag. It is built
// just-in-time for a single call, never persisted in this form and never
// logged.
type Credentials map[string]string

func (c Credentials) APIKey() string             { return c["api_key"] }
func (c Credentials) ResourceName() string       { return c["resource_name"] }
func (c Credentials) DeploymentID() string       { return c["deployment_id"] }
func (c Credentials) Region() string             { return c["region"] }
func (c Credentials) AccessKeyID() string        { return c["access_key_id"] }
func (c Credentials) SecretAccessKey() string    { return c["secret_access_key"] }
func (c Credentials) SessionToken() string       { return c["session_token"] }
func (c Credentials) ServiceAccountJSON() string { return c["service_account_json"] }
func (c Credentials) ProjectID() string          { return c["project_id"] }
func (c Credentials) Location() string           { return c["location"] }
func (c Credentials) APIVersion() string         { return c["api_version"] }

// Provider is the adapter contract. TransformRequest and TransformResponse
// are pure and synchronous; Chat and Stream orchestrate them around the HTTP
// call. Credentials arrive per call since they are resolved per team and per
// request.
type Provider interface {
	Name() string

	// TransformRequest maps a unified request into the provider's wire shape.
	// The model field has its `provider:` prefix stripped; sampling
	// parameters are forwarded only when the provider supports them.
	TransformRequest(req *api.ChatRequest) (Payload, error)

	// TransformResponse maps a provider response body back into the unified
	// envelope, applying the provider's finish-reason mapping.
	TransformResponse(raw Payload, unifiedModel string) (*api.ChatResponse, error)

	// Chat performs a synchronous completion. A non-2xx upstream status is a
	// fatal error for the call; no retries.
	Chat(ctx context.Context, req *api.ChatRequest, creds Credentials) (*api.ChatResponse, error)

	// Stream performs a streaming completion, yielding normalized chunks.
	// Malformed stream events are skipped, not fatal. Providers without
	// streaming support return ErrStreamingNotSupported synchronously.
	Stream(ctx context.Context, req *api.ChatRequest, creds Credentials) (<-chan api.StreamResult, error)

	// Models lists the provider's catalog.
	Models(ctx context.Context, creds Credentials) ([]api.Model, error)

	// ValidateCredentials probes the provider and collapses every failure
	// into false.
	ValidateCredentials(ctx context.Context, creds Credentials) bool
}

// ProviderConfig carries the static construction-time configuration of an
// adapter. Credentials are deliberately absent: they are resolved per call.
type ProviderConfig struct {
	ID      string            `json:"id" yaml:"id" mapstructure:"id" validate:"required"`
	Type    string            `json:"type" yaml:"type" mapstructure:"type" validate:"required"`
	Name    string            `json:"name" yaml:"name" mapstructure:"name"`
	BaseURL string            `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Config  map[string]string `json:"config" yaml:"config" mapstructure:"config"`
}

// StripModelPrefix removes the leading `provider:` segment from a unified
// model identifier. Identifiers without a colon pass through unchanged.
func StripModelPrefix(model string) string {
	if _, rest, ok := strings.Cut(model, ":"); ok {
		return rest
	}
	return model
}

// ParseUnifiedID splits `provider:model` into its parts. Both segments must
// be non-empty for the parse to succeed.
func ParseUnifiedID(identifier string) (providerID, modelID string, ok bool) {
	providerID, modelID, ok = strings.Cut(identifier, ":")
	if !ok || providerID == "" || modelID == "" {
		return "", "", false
	}
	return providerID, modelID, true
}
