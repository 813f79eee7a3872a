package store

import (
	"context"
	"errors"

	"github.com/modelgate/gateway/internal/store/model"
)

type contextKey string

const (
	ContextKeyAPIKey contextKey = "api_key"
	ContextKeyTeamID contextKey = "team_id"
)

// ErrNotFound is returned by lookups that matched no row.
var ErrNotFound = errors.New("store: not found")

// Repository is the main contract for the data layer.
type Repository interface {
	APIKeys() APIKeyRepository
	Requests() RequestRepository
	Models() ModelRepository
	Credentials() CredentialRepository
	CustomProviders() CustomProviderRepository
	Teams() TeamRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type APIKeyRepository interface {
	// GetByHash retrieves a key by its hashed value (for auth).
	GetByHash(ctx context.Context, hash string) (*model.APIKey, error)
	// Create issues a new API key.
	Create(ctx context.Context, key *model.APIKey) error
	// UpdateUsage stamps last_used_at.
	UpdateUsage(ctx context.Context, id string) error
	// ListByTeamID returns all keys for a team.
	ListByTeamID(ctx context.Context, teamID string) ([]model.APIKey, error)
}

type RequestRepository interface {
	// Log stores a completed request.
	Log(ctx context.Context, log *model.RequestLog) error
	// GetRecent returns the last N logs for a team.
	GetRecent(ctx context.Context, teamID string, limit int) ([]model.RequestLog, error)
	// GetDailyStats returns aggregated stats grouped by day.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}

type ModelRepository interface {
	// GetByAlias resolves a stored model alias to its route, checking the
	// team's own routes before global ones. Returns ErrNotFound when no
	// enabled route visible to the team carries the alias.
	GetByAlias(ctx context.Context, alias, teamID string) (*model.ModelRoute, error)
	// List returns all enabled routes visible to the team.
	List(ctx context.Context, teamID string) ([]model.ModelRoute, error)
	// Sync replaces the global routes from configuration. Team routes are
	// left untouched.
	Sync(ctx context.Context, routes []model.ModelRoute) error
}

type CredentialRepository interface {
	// GetDecrypted opens the sealed credential bag for a team and provider.
	// Returns ErrNotFound when the team holds no credentials for the
	// provider. The decrypted map must not outlive the call that needed it.
	GetDecrypted(ctx context.Context, teamID, providerID string) (map[string]string, error)
	// Store seals and upserts a credential bag.
	Store(ctx context.Context, teamID, providerID string, creds map[string]string) error
	// Delete removes a team's credentials for a provider.
	Delete(ctx context.Context, teamID, providerID string) error
}

type CustomProviderRepository interface {
	Get(ctx context.Context, id string) (*model.CustomProvider, error)
	List(ctx context.Context) ([]model.CustomProvider, error)
	Create(ctx context.Context, p *model.CustomProvider) error
	Update(ctx context.Context, p *model.CustomProvider) error
	Delete(ctx context.Context, id string) error
}

type TeamRepository interface {
	Get(ctx context.Context, id string) (*model.Team, error)
	Create(ctx context.Context, team *model.Team) error
}
