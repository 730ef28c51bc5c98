package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// DefaultPostgresPort is used when the secret carries no port.
const DefaultPostgresPort = "5432"

// ErrDatabaseNotConfigured is returned when neither the secret store nor
// DATABASE_URL yields a connection string.
var ErrDatabaseNotConfigured = errors.New(
	"database configuration not found: set SECRET_NAME/AWS_REGION or DATABASE_URL",
)

// errBinarySecret means the secret only has a SecretBinary payload.
var errBinarySecret = errors.New("secret has no string value, binary secrets cannot be parsed")

// SecretsClient is the subset of the Secrets Manager API the resolver needs.
// *secretsmanager.Client satisfies it.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClientFactory builds a client bound to a region.
type SecretsClientFactory func(ctx context.Context, region string) (SecretsClient, error)

// NewSecretsManagerClient loads the default AWS credential chain for region.
func NewSecretsManagerClient(ctx context.Context, region string) (SecretsClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// DatabaseSecret is the JSON document stored in the credentials secret.
//
// Port is a json.Number because generated RDS secrets store it as a number
// while hand-written ones often quote it.
type DatabaseSecret struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	DBName   string      `json:"dbname"`
}

// URI composes a postgresql:// connection string with escaped credentials.
func (s DatabaseSecret) URI() string {
	port := s.Port.String()
	if port == "" {
		port = DefaultPostgresPort
	}

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(s.Username, s.Password),
		Host:   net.JoinHostPort(s.Host, port),
		Path:   "/" + s.DBName,
	}
	return u.String()
}

// CredentialResolver turns DatabaseConfig into a connection string.
type CredentialResolver struct {
	newClient SecretsClientFactory
	logger    *zerolog.Logger
}

// NewCredentialResolver returns a resolver that uses newClient to reach the
// secret store. A nil factory defaults to NewSecretsManagerClient.
func NewCredentialResolver(logger *zerolog.Logger, newClient SecretsClientFactory) *CredentialResolver {
	if newClient == nil {
		newClient = NewSecretsManagerClient
	}
	return &CredentialResolver{
		newClient: newClient,
		logger:    logger,
	}
}

// Resolve returns the database connection string.
//
// Order:
//  1. SecretName + Region set: fetch the secret and compose the URI.
//  2. Not configured, or the fetch failed: use URL (DATABASE_URL).
//  3. Nothing usable: return an error wrapping ErrDatabaseNotConfigured
//     and the secret error, if any.
//
// There is no retry; the caller is expected to stop the process.
func (r *CredentialResolver) Resolve(ctx context.Context, cfg DatabaseConfig) (string, error) {
	var secretErr error

	if cfg.SecretName != "" && cfg.Region != "" {
		uri, err := r.fetch(ctx, cfg.SecretName, cfg.Region)
		if err == nil {
			r.logger.Info().
				Str("secret_name", cfg.SecretName).
				Str("region", cfg.Region).
				Msg("resolved database credentials from secrets manager")
			return uri, nil
		}

		secretErr = err
		r.logger.Error().
			Err(err).
			Str("secret_name", cfg.SecretName).
			Str("region", cfg.Region).
			Msg("error retrieving database secret")
	}

	if cfg.URL != "" {
		event := r.logger.Info()
		if secretErr != nil {
			event = r.logger.Warn()
		}
		event.Msg("using DATABASE_URL for database connection")
		return cfg.URL, nil
	}

	if secretErr != nil {
		return "", fmt.Errorf("%w: %w", ErrDatabaseNotConfigured, secretErr)
	}
	return "", ErrDatabaseNotConfigured
}

func (r *CredentialResolver) fetch(ctx context.Context, secretName, region string) (string, error) {
	client, err := r.newClient(ctx, region)
	if err != nil {
		return "", err
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret value: %w", err)
	}

	if out.SecretString == nil {
		return "", errBinarySecret
	}

	var secret DatabaseSecret
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return "", fmt.Errorf("failed to parse secret string: %w", err)
	}

	return secret.URI(), nil
}
