package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LoadConfig reads from the working directory; chdir into an empty temp dir
// so a developer's local config.yaml cannot leak into the tests.
func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chTempDir(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Contains(t, cfg.Database.DSN, "_journal_mode=WAL")
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "modelgate", cfg.Redis.Prefix)
	assert.Equal(t, 10.0, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	chTempDir(t)
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	chTempDir(t)

	yaml := `
server:
  port: "3000"
routes:
  - alias: gpt-4o
    provider: openai
    model: gpt-4o
    context_window: 128000
custom_providers:
  - id: custom-local
    type: custom
    base_url: http://localhost:11434
    config:
      api_key: ENV:LOCAL_LLM_KEY
`
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("LOCAL_LLM_KEY", "resolved-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "gpt-4o", cfg.Routes[0].Alias)
	assert.Equal(t, 128000, cfg.Routes[0].ContextWindow)

	require.Len(t, cfg.CustomProviders, 1)
	// ENV: indirection resolves against the process environment
	assert.Equal(t, "resolved-secret", cfg.CustomProviders[0].Config["api_key"])
}

// The encryption key has no file-borne default, so it must still be
// reachable straight from the environment.
func TestLoadConfig_EncryptionKeyFromEnv(t *testing.T) {
	chTempDir(t)
	t.Setenv("DATABASE_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Database.EncryptionKey)
}

func TestLoadConfig_EncryptionKeyIndirection(t *testing.T) {
	chTempDir(t)
	t.Setenv("DATABASE_ENCRYPTION_KEY", "ENV:REAL_KEY")
	t.Setenv("REAL_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Database.EncryptionKey)
}
