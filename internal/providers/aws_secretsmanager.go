package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/systmms/awsmenv/internal/config"
	"github.com/systmms/awsmenv/pkg/provider"
)

// SecretsManagerClientAPI defines the Secrets Manager operations used by the provider.
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSSecretsManagerProvider serves @aws-sm and @aws directives.
type AWSSecretsManagerProvider struct {
	name   string
	client SecretsManagerClientAPI
}

// SecretsManagerOption is a functional option for configuring the provider
type SecretsManagerOption func(*AWSSecretsManagerProvider)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(p *AWSSecretsManagerProvider) {
		p.client = client
	}
}

// NewAWSSecretsManagerProvider creates a Secrets Manager provider.
// Without an injected client it loads the AWS default configuration.
func NewAWSSecretsManagerProvider(ctx context.Context, cfg config.AWSConfig, opts ...SecretsManagerOption) (*AWSSecretsManagerProvider, error) {
	p := &AWSSecretsManagerProvider{name: provider.SecretsManager.String()}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.client = secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
	}

	return p, nil
}

// Name returns the provider name
func (p *AWSSecretsManagerProvider) Name() string {
	return p.name
}

// Kind returns provider.SecretsManager
func (p *AWSSecretsManagerProvider) Kind() provider.Kind {
	return provider.SecretsManager
}

// Fetch returns the current string value of the secret. Binary secrets are
// returned as their raw bytes interpreted as text.
func (p *AWSSecretsManagerProvider) Fetch(ctx context.Context, name string) (string, error) {
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", p.handleError(ctx, err, name)
	}

	switch {
	case result.SecretString != nil:
		return *result.SecretString, nil
	case result.SecretBinary != nil:
		return string(result.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %q has no value", name)
}

// Validate checks that credentials are accepted by listing at most one secret
func (p *AWSSecretsManagerProvider) Validate(ctx context.Context) error {
	_, err := p.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: aws.Int32(1)})
	if err != nil {
		return provider.AuthError{
			Provider: p.name,
			Message:  fmt.Sprintf("AWS authentication failed: %v", err),
		}
	}
	return nil
}

// handleError converts AWS errors to provider errors
func (p *AWSSecretsManagerProvider) handleError(ctx context.Context, err error, name string) error {
	var notFound *smtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return provider.NotFoundError{Provider: p.name, Key: name}
	}
	if isAWSAuthError(err) {
		return provider.AuthError{
			Provider: p.name,
			Message:  fmt.Sprintf("AWS authentication/authorization failed: %v", err),
		}
	}
	return contextError(ctx, fmt.Errorf("AWS Secrets Manager error: %w", err))
}
