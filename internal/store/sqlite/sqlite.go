package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/modelgate/gateway/internal/store"
	"github.com/modelgate/gateway/internal/store/model"
)

// DB defines the interface for database operations (satisfied by *sqlx.DB and *sqlx.Tx)
type DB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SqliteRepository implements store.Repository
type SqliteRepository struct {
	db       *sqlx.DB // Required for starting new transactions
	executor DB       // Used for actual queries (can be *sqlx.DB or *sqlx.Tx)
	box      *secretBox
}

func NewSqliteRepository(db *sqlx.DB, box *secretBox) *SqliteRepository {
	return &SqliteRepository{
		db:       db,
		executor: db,
		box:      box,
	}
}

func (r *SqliteRepository) Close() error {
	return r.db.Close()
}

func (r *SqliteRepository) WithTx(ctx context.Context, fn func(repo store.Repository) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	// Create a repository instance that uses the transaction
	txRepo := &SqliteRepository{
		db:       r.db, // Keep the original DB handle
		executor: tx,
		box:      r.box,
	}

	if err := fn(txRepo); err != nil {
		// attempt rollback, but prioritize original error
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (r *SqliteRepository) APIKeys() store.APIKeyRepository {
	return &apiKeyRepo{db: r.executor}
}

func (r *SqliteRepository) Requests() store.RequestRepository {
	return &requestRepo{db: r.executor}
}

func (r *SqliteRepository) Models() store.ModelRepository {
	return &modelRepo{db: r.executor}
}

func (r *SqliteRepository) Credentials() store.CredentialRepository {
	return &credentialRepo{db: r.executor, box: r.box}
}

func (r *SqliteRepository) CustomProviders() store.CustomProviderRepository {
	return &customProviderRepo{db: r.executor}
}

func (r *SqliteRepository) Teams() store.TeamRepository {
	return &teamRepo{db: r.executor}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

type apiKeyRepo struct {
	db DB
}

func (r *apiKeyRepo) GetByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	// active check is part of the query for speed
	query := `SELECT * FROM api_keys WHERE key_hash = ? AND is_active = 1`
	if err := r.db.GetContext(ctx, &key, query, hash); err != nil {
		return nil, notFound(err)
	}
	return &key, nil
}

func (r *apiKeyRepo) Create(ctx context.Context, key *model.APIKey) error {
	query := `
	INSERT INTO api_keys (id, team_id, name, key_hash, key_prefix, is_active, created_at, updated_at)
	VALUES (:id, :team_id, :name, :key_hash, :key_prefix, :is_active, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, key)
	return err
}

func (r *apiKeyRepo) UpdateUsage(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET last_used_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return err
}

func (r *apiKeyRepo) ListByTeamID(ctx context.Context, teamID string) ([]model.APIKey, error) {
	var keys []model.APIKey
	err := r.db.SelectContext(ctx, &keys, `SELECT * FROM api_keys WHERE team_id = ?`, teamID)
	return keys, err
}

type requestRepo struct {
	db DB
}

func (r *requestRepo) Log(ctx context.Context, log *model.RequestLog) error {
	query := `
	INSERT INTO request_logs (
		id, team_id, api_key_id, provider_id, model_id, upstream_id,
		finish_reason, input_tokens, output_tokens,
		latency_ms, ttft_ms, status_code, is_streamed,
		ip_address, user_agent, created_at
	) VALUES (
		:id, :team_id, :api_key_id, :provider_id, :model_id, :upstream_id,
		:finish_reason, :input_tokens, :output_tokens,
		:latency_ms, :ttft_ms, :status_code, :is_streamed,
		:ip_address, :user_agent, :created_at
	)`
	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

func (r *requestRepo) GetRecent(ctx context.Context, teamID string, limit int) ([]model.RequestLog, error) {
	var logs []model.RequestLog
	query := `SELECT * FROM request_logs WHERE team_id = ? ORDER BY created_at DESC LIMIT ?`
	err := r.db.SelectContext(ctx, &logs, query, teamID, limit)
	return logs, err
}

func (r *requestRepo) GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error) {
	var stats []model.DailyStats
	query := `
		SELECT
			DATE(created_at) as date,
			COUNT(*) as total_requests,
			SUM(input_tokens + output_tokens) as total_tokens,
			AVG(latency_ms) as avg_latency
		FROM request_logs
		WHERE created_at >= DATE('now', ?)
		GROUP BY date
		ORDER BY date DESC
	`
	// SQLite date offset format is '-7 days'
	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}

type modelRepo struct {
	db DB
}

func (r *modelRepo) GetByAlias(ctx context.Context, alias, teamID string) (*model.ModelRoute, error) {
	var route model.ModelRoute
	// team routes shadow global ('') ones carrying the same alias
	query := `
	SELECT * FROM model_routes
	WHERE alias = ? AND is_enabled = 1 AND team_id IN (?, '')
	ORDER BY team_id DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &route, query, alias, teamID); err != nil {
		return nil, notFound(err)
	}
	return &route, nil
}

func (r *modelRepo) List(ctx context.Context, teamID string) ([]model.ModelRoute, error) {
	var routes []model.ModelRoute
	query := `SELECT * FROM model_routes WHERE is_enabled = 1 AND team_id IN (?, '') ORDER BY alias`
	err := r.db.SelectContext(ctx, &routes, query, teamID)
	return routes, err
}

func (r *modelRepo) Sync(ctx context.Context, routes []model.ModelRoute) error {
	// First, mark all global routes as disabled. The loop below re-enables
	// present ones; team routes are not configuration-managed.
	if _, err := r.db.ExecContext(ctx, `UPDATE model_routes SET is_enabled = 0 WHERE team_id = ''`); err != nil {
		return err
	}

	query := `
	INSERT INTO model_routes (
		id, team_id, alias, provider_id, provider_model_id, context_window, is_enabled,
		created_at, updated_at
	) VALUES (
		:id, :team_id, :alias, :provider_id, :provider_model_id, :context_window, :is_enabled,
		CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
	)
	ON CONFLICT(id) DO UPDATE SET
		team_id = excluded.team_id,
		alias = excluded.alias,
		provider_id = excluded.provider_id,
		provider_model_id = excluded.provider_model_id,
		context_window = excluded.context_window,
		is_enabled = excluded.is_enabled,
		updated_at = CURRENT_TIMESTAMP`

	for _, route := range routes {
		if _, err := r.db.NamedExecContext(ctx, query, route); err != nil {
			return err
		}
	}

	return nil
}

type credentialRepo struct {
	db  DB
	box *secretBox
}

func (r *credentialRepo) GetDecrypted(ctx context.Context, teamID, providerID string) (map[string]string, error) {
	var row model.ProviderCredential
	query := `SELECT * FROM provider_credentials WHERE team_id = ? AND provider_id = ?`
	if err := r.db.GetContext(ctx, &row, query, teamID, providerID); err != nil {
		return nil, notFound(err)
	}

	plaintext, err := r.box.open(row.CredentialsEnc)
	if err != nil {
		return nil, err
	}

	var creds map[string]string
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credential bag: %w", err)
	}
	return creds, nil
}

func (r *credentialRepo) Store(ctx context.Context, teamID, providerID string, creds map[string]string) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	sealed, err := r.box.seal(plaintext)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO provider_credentials (id, team_id, provider_id, credentials_enc, created_at, updated_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(team_id, provider_id) DO UPDATE SET
		credentials_enc = excluded.credentials_enc,
		updated_at = CURRENT_TIMESTAMP`
	_, err = r.db.ExecContext(ctx, query, teamID+":"+providerID, teamID, providerID, sealed)
	return err
}

func (r *credentialRepo) Delete(ctx context.Context, teamID, providerID string) error {
	query := `DELETE FROM provider_credentials WHERE team_id = ? AND provider_id = ?`
	_, err := r.db.ExecContext(ctx, query, teamID, providerID)
	return err
}

type customProviderRepo struct {
	db DB
}

func (r *customProviderRepo) Get(ctx context.Context, id string) (*model.CustomProvider, error) {
	var p model.CustomProvider
	if err := r.db.GetContext(ctx, &p, `SELECT * FROM custom_providers WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *customProviderRepo) List(ctx context.Context) ([]model.CustomProvider, error) {
	var providers []model.CustomProvider
	err := r.db.SelectContext(ctx, &providers, `SELECT * FROM custom_providers WHERE is_enabled = 1 ORDER BY id`)
	return providers, err
}

func (r *customProviderRepo) Create(ctx context.Context, p *model.CustomProvider) error {
	query := `
	INSERT INTO custom_providers (
		id, name, base_url, auth_header_name, auth_value_template,
		api_version, models_path, chat_completions_path, is_enabled,
		created_at, updated_at
	) VALUES (
		:id, :name, :base_url, :auth_header_name, :auth_value_template,
		:api_version, :models_path, :chat_completions_path, :is_enabled,
		CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
	)`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}

func (r *customProviderRepo) Update(ctx context.Context, p *model.CustomProvider) error {
	query := `
	UPDATE custom_providers SET
		name = :name,
		base_url = :base_url,
		auth_header_name = :auth_header_name,
		auth_value_template = :auth_value_template,
		api_version = :api_version,
		models_path = :models_path,
		chat_completions_path = :chat_completions_path,
		is_enabled = :is_enabled,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, p)
	return err
}

func (r *customProviderRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM custom_providers WHERE id = ?`, id)
	return err
}

type teamRepo struct {
	db DB
}

func (r *teamRepo) Get(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	if err := r.db.GetContext(ctx, &t, `SELECT * FROM teams WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *teamRepo) Create(ctx context.Context, team *model.Team) error {
	query := `
	INSERT INTO teams (id, name, is_active, created_at, updated_at)
	VALUES (:id, :name, :is_active, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, team)
	return err
}
