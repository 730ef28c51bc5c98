// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env`
// file when one exists), loads them into structured Go types, and
// validates that required values are present so they can be reused
// across the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (e.g. observability).
//   - Resolve the database connection string (see credentials.go).
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists, it gets loaded into the
	// process env before any code reads env vars.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

/*
	Two families of env vars are read:

	- Service settings use the USERS_API_ prefix. Keys are lowercased,
	  the prefix is removed and "__" marks nesting:
	    USERS_API_SERVER__PORT -> server.port -> Config.Server.Port

	- The deployment contract shared with the provisioning stack uses bare
	  names: SECRET_NAME, AWS_REGION, DATABASE_URL and SECRET_KEY. They are
	  mapped onto the same koanf tree by bareEnvKeys.
*/

const (
	envPrefix = "USERS_API_"

	// ServiceName tags logs, traces and APM data.
	ServiceName = "users-api"

	// InsecureSecretKey is used when SECRET_KEY is unset. It is public and
	// must never be relied on outside local development.
	InsecureSecretKey = "a-default-fallback-secret-key"
)

// bareEnvKeys maps the unprefixed deployment variables onto koanf paths.
var bareEnvKeys = map[string]string{
	"SECRET_NAME":  "database.secret_name",
	"AWS_REGION":   "database.region",
	"DATABASE_URL": "database.url",
	"SECRET_KEY":   "auth.secret_key",
}

// Config is the root configuration object for the application.
//
// The `koanf:"..."` tags specify where koanf maps values from.
// The `validate:"..."` tags are enforced by go-playground/validator.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Auth          AuthConfig           `koanf:"auth" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required,min=1"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required,min=1"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required,min=1"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required,min=1"`

	// PathPrefix is the mount point of the API routes (e.g. "/api").
	PathPrefix string `koanf:"path_prefix" validate:"omitempty,startswith=/"`

	// RateLimit is the allowed requests per second per client IP.
	// Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit" validate:"min=0"`
}

// DatabaseConfig describes where the database target comes from and how
// the connection pool is tuned.
//
// Either SecretName + Region (Secrets Manager) or URL must resolve to a
// connection string; that is checked by CredentialResolver, not here.
type DatabaseConfig struct {
	SecretName string `koanf:"secret_name"`
	Region     string `koanf:"region"`
	URL        string `koanf:"url"`

	MaxConns        int32 `koanf:"max_conns" validate:"min=1"`
	MinConns        int32 `koanf:"min_conns" validate:"min=0"`
	ConnMaxLifetime int   `koanf:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime int   `koanf:"conn_max_idle_time" validate:"min=0"`
}

// AuthConfig stores authentication-related secrets.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
}

// UsesInsecureSecretKey reports whether the session signing key fell back
// to the built-in default.
func (a AuthConfig) UsesInsecureSecretKey() bool {
	return a.SecretKey == InsecureSecretKey
}

// DefaultConfig returns the configuration used before any env var is applied.
func DefaultConfig() *Config {
	return &Config{
		Primary: Primary{
			Env: "development",
		},
		Server: ServerConfig{
			Port:               "8080",
			ReadTimeout:        30,
			WriteTimeout:       30,
			IdleTimeout:        60,
			CORSAllowedOrigins: []string{"*"},
			PathPrefix:         "/api",
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        0,
			ConnMaxLifetime: 1800,
			ConnMaxIdleTime: 300,
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// LoadConfig loads configuration from environment variables, unmarshals it
// over DefaultConfig, validates it and returns the result.
//
// Errors are returned rather than logged fatally so the caller decides how
// to stop the process.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")

		// Lists arrive as comma separated strings.
		if key == "server.cors_allowed_origins" {
			return key, splitList(value)
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load prefixed env variables: %w", err)
	}

	// An empty prefix walks the whole environment; returning "" drops a key.
	err = k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		path, ok := bareEnvKeys[key]
		if !ok || value == "" {
			return "", nil
		}
		return path, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load deployment env variables: %w", err)
	}

	mainConfig := DefaultConfig()

	// Unmarshal decodes over the defaults, keeping fields that have no key.
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	if mainConfig.Auth.SecretKey == "" {
		mainConfig.Auth.SecretKey = InsecureSecretKey
	}

	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}

	// Service name and environment are not user configurable.
	mainConfig.Observability.ServiceName = ServiceName
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := validator.New().Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
