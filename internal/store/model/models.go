package model

import (
	"database/sql"
	"time"
)

// Team is the tenant unit. Credentials, API keys and request logs all hang
// off a team.
type Team struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// APIKey is the inbound credential used to call the gateway.
type APIKey struct {
	ID         string       `db:"id" json:"id"`
	TeamID     string       `db:"team_id" json:"team_id"`
	Name       string       `db:"name" json:"name"`
	KeyHash    string       `db:"key_hash" json:"-"`            // Never return hash
	KeyPrefix  string       `db:"key_prefix" json:"key_prefix"` // Display only
	ExpiresAt  sql.NullTime `db:"expires_at" json:"expires_at,omitempty"`
	LastUsedAt sql.NullTime `db:"last_used_at" json:"last_used_at,omitempty"`
	IsActive   bool         `db:"is_active" json:"is_active"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// ModelRoute maps a stored model alias to the provider that serves it.
// An empty TeamID marks a global route visible to every team; a team route
// shadows a global one carrying the same alias.
type ModelRoute struct {
	ID              string    `db:"id" json:"id"`
	TeamID          string    `db:"team_id" json:"team_id,omitempty"`
	Alias           string    `db:"alias" json:"alias"`
	ProviderID      string    `db:"provider_id" json:"provider_id"`
	ProviderModelID string    `db:"provider_model_id" json:"provider_model_id"`
	ContextWindow   int       `db:"context_window" json:"context_window"`
	IsEnabled       bool      `db:"is_enabled" json:"is_enabled"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ProviderCredential holds a team's upstream credentials for one provider.
// The credential bag is stored as an AES-GCM sealed JSON object and only
// ever decrypted just-in-time for a call.
type ProviderCredential struct {
	ID             string    `db:"id" json:"id"`
	TeamID         string    `db:"team_id" json:"team_id"`
	ProviderID     string    `db:"provider_id" json:"provider_id"`
	CredentialsEnc []byte    `db:"credentials_enc" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CustomProvider is a tenant-defined OpenAI-compatible upstream.
type CustomProvider struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	BaseURL             string    `db:"base_url" json:"base_url"`
	AuthHeaderName      string    `db:"auth_header_name" json:"auth_header_name,omitempty"`
	AuthValueTemplate   string    `db:"auth_value_template" json:"auth_value_template,omitempty"`
	APIVersion          string    `db:"api_version" json:"api_version,omitempty"`
	ModelsPath          string    `db:"models_path" json:"models_path,omitempty"`
	ChatCompletionsPath string    `db:"chat_completions_path" json:"chat_completions_path,omitempty"`
	IsEnabled           bool      `db:"is_enabled" json:"is_enabled"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// RequestLog captures the detail of a completed inference request.
type RequestLog struct {
	ID           string        `db:"id" json:"id"`
	TeamID       string        `db:"team_id" json:"team_id"`
	APIKeyID     string        `db:"api_key_id" json:"api_key_id"`
	ProviderID   string        `db:"provider_id" json:"provider_id"`
	ModelID      string        `db:"model_id" json:"model_id"`
	UpstreamID   string        `db:"upstream_id" json:"upstream_id"`
	FinishReason string        `db:"finish_reason" json:"finish_reason"`
	InputTokens  int           `db:"input_tokens" json:"input_tokens"`
	OutputTokens int           `db:"output_tokens" json:"output_tokens"`
	LatencyMS    int64         `db:"latency_ms" json:"latency_ms"`
	TTFTMS       sql.NullInt64 `db:"ttft_ms" json:"ttft_ms,omitempty"`
	StatusCode   int           `db:"status_code" json:"status_code"`
	IsStreamed   bool          `db:"is_streamed" json:"is_streamed"`
	IPAddress    string        `db:"ip_address" json:"ip_address"`
	UserAgent    string        `db:"user_agent" json:"user_agent"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	TotalRequests  int     `db:"total_requests" json:"total_requests"`
	TotalTokens    int     `db:"total_tokens" json:"total_tokens"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency"`
}
