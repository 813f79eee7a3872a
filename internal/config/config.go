package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/modelgate/gateway/internal/llm"
	"github.com/spf13/viper"
)

type Config struct {
	Server          ServerConfig         `mapstructure:"server"`
	Database        DatabaseConfig       `mapstructure:"database"`
	Redis           RedisConfig          `mapstructure:"redis"`
	RateLimit       RateLimitConfig      `mapstructure:"rate_limit"`
	Tracing         TracingConfig        `mapstructure:"tracing"`
	Routes          []RouteConfig        `mapstructure:"routes"`
	CustomProviders []llm.ProviderConfig `mapstructure:"custom_providers"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	DSN           string `mapstructure:"dsn"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Prefix  string `mapstructure:"prefix"`
	Enabled bool   `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RouteConfig declares a model alias in configuration. Aliases are synced
// into the store on startup.
type RouteConfig struct {
	Alias         string `mapstructure:"alias"`
	Provider      string `mapstructure:"provider"`
	Model         string `mapstructure:"model"`
	ContextWindow int    `mapstructure:"context_window"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	// Default Values
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.dsn", "file:gateway.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	// registered with an empty default so AutomaticEnv picks up
	// DATABASE_ENCRYPTION_KEY; viper only surfaces env values for known keys
	v.SetDefault("database.encryption_key", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.prefix", "modelgate")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("tracing.enabled", false)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve ENV: indirection for secret-bearing values
	cfg.Database.EncryptionKey = resolveEnv(v, cfg.Database.EncryptionKey)
	for i, p := range cfg.CustomProviders {
		for key, val := range p.Config {
			cfg.CustomProviders[i].Config[key] = resolveEnv(v, val)
		}
	}

	return &cfg, nil
}

// resolveEnv expands the ENV:VAR_NAME indirection so secrets stay out of
// the config file.
func resolveEnv(v *viper.Viper, value string) string {
	if !strings.HasPrefix(value, "ENV:") {
		return value
	}
	envVar := strings.TrimPrefix(value, "ENV:")
	// Check process environment first (explicit override)
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	// Then check viper (which might have it from other sources)
	return v.GetString(envVar)
}
