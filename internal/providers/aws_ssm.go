package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/systmms/awsmenv/internal/config"
	dserrors "github.com/systmms/awsmenv/internal/errors"
	"github.com/systmms/awsmenv/pkg/provider"
)

// SSMClientAPI defines the Parameter Store operations used by the provider.
// This allows for mocking in tests
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// AWSSSMProvider serves @aws-ps directives from Systems Manager Parameter Store.
type AWSSSMProvider struct {
	name    string
	client  SSMClientAPI
	decrypt bool
	prefix  string
}

// SSMProviderOption is a functional option for configuring SSM providers
type SSMProviderOption func(*AWSSSMProvider)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) SSMProviderOption {
	return func(p *AWSSSMProvider) {
		p.client = client
	}
}

// NewAWSSSMProvider creates a Parameter Store provider
func NewAWSSSMProvider(ctx context.Context, awsCfg config.AWSConfig, ssmCfg config.SSMConfig, opts ...SSMProviderOption) (*AWSSSMProvider, error) {
	p := &AWSSSMProvider{
		name:    provider.ParameterStore.String(),
		decrypt: ssmCfg.Decrypt(),
		prefix:  ssmCfg.ParameterPrefix,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		cfg, err := loadAWSConfig(ctx, awsCfg)
		if err != nil {
			return nil, err
		}
		p.client = ssm.NewFromConfig(cfg, func(o *ssm.Options) {
			if awsCfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(awsCfg.Endpoint)
			}
		})
	}

	return p, nil
}

// Name returns the provider name
func (p *AWSSSMProvider) Name() string {
	return p.name
}

// Kind returns provider.ParameterStore
func (p *AWSSSMProvider) Kind() provider.Kind {
	return provider.ParameterStore
}

// ParameterName applies the configured prefix to relative names.
// Names starting with '/' are used as given.
func (p *AWSSSMProvider) ParameterName(name string) string {
	if p.prefix == "" || strings.HasPrefix(name, "/") {
		return name
	}
	return strings.TrimSuffix(p.prefix, "/") + "/" + name
}

// Fetch returns the parameter value, decrypting SecureString parameters
func (p *AWSSSMProvider) Fetch(ctx context.Context, name string) (string, error) {
	parameterName := p.ParameterName(name)

	result, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(parameterName),
		WithDecryption: aws.Bool(p.decrypt),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", provider.NotFoundError{Provider: p.name, Key: parameterName}
		}
		if isAWSAuthError(err) {
			return "", provider.AuthError{
				Provider: p.name,
				Message:  fmt.Sprintf("%v. %s", err, ssmErrorSuggestion(err)),
			}
		}
		return "", contextError(ctx, fmt.Errorf("AWS SSM error: %w", err))
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %q has no value", parameterName)
	}
	return *result.Parameter.Value, nil
}

// Validate describes at most one parameter (minimal permissions needed)
func (p *AWSSSMProvider) Validate(ctx context.Context) error {
	_, err := p.client.DescribeParameters(ctx, &ssm.DescribeParametersInput{MaxResults: aws.Int32(1)})
	if err != nil {
		return dserrors.UserError{
			Message:    "Failed to connect to AWS SSM Parameter Store",
			Details:    err.Error(),
			Suggestion: ssmErrorSuggestion(err),
			Err:        err,
		}
	}
	return nil
}

// ssmErrorSuggestion provides helpful suggestions based on SSM errors
func ssmErrorSuggestion(err error) string {
	code := strings.ToLower(awsErrorCode(err))

	switch {
	case strings.Contains(code, "accessdenied"):
		return "Check IAM permissions: ssm:GetParameter, ssm:DescribeParameters, and kms:Decrypt (for SecureString)"
	case strings.Contains(code, "invalidkeyid"):
		return "The KMS key for this SecureString parameter may not exist or you lack kms:Decrypt permission"
	case strings.Contains(code, "throttl"):
		return "Request was throttled. Lower --concurrency or requests_per_second"
	default:
		return "Check AWS credentials, region, and IAM permissions for SSM Parameter Store"
	}
}
